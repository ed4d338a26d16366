package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/hyli-org/hyliquid-sub000/pkg/actions"
	"github.com/hyli-org/hyliquid-sub000/pkg/api"
	"github.com/hyli-org/hyliquid-sub000/pkg/crypto"
	"github.com/hyli-org/hyliquid-sub000/pkg/entities"
)

func main() {
	// Step 1: Generate a session key.
	fmt.Println("Generating new session key...")
	signer, err := crypto.GenerateKey()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Session public key: 0x%x\n", signer.PublicKeyBytes())
	fmt.Printf("Session private key: %s (KEEP SECRET!)\n\n", signer.PrivateKeyHex())

	// Step 2: Build a create_order action. identity/nonce must match the
	// identity's current on-chain state; this demo uses placeholders a real
	// caller would fill in from GET /api/v1/users/{identity}.
	identity := entities.Identity("alice")
	action := &actions.OrderbookAction{
		Kind:     actions.KindCreateOrder,
		Identity: identity,
		Nonce:    0,
		Order: &entities.Order{
			OrderID:  entities.OrderID("order-demo-1"),
			Type:     entities.OrderTypeLimit,
			Side:     entities.SideBid,
			Price:    50000,
			Pair:     entities.Pair{Base: "BTC", Quote: "USDC"},
			Quantity: 100,
		},
	}

	fmt.Println("Order details:")
	fmt.Printf("  Identity: %s\n", action.Identity)
	fmt.Printf("  OrderID: %s\n", action.Order.OrderID)
	fmt.Printf("  Pair: %s/%s\n", action.Order.Pair.Base, action.Order.Pair.Quote)
	fmt.Printf("  Side: %d  Price: %d  Quantity: %d\n\n", action.Order.Side, action.Order.Price, action.Order.Quantity)

	// Step 3: Sign the message template (identity:nonce:create_order:order_id).
	message := actions.Message(action)
	fmt.Printf("Signing message: %q\n", message)
	signature, err := signer.Sign([]byte(message))
	if err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Signature: 0x%x\n\n", signature)

	// Step 4: Verify locally (the dispatcher does the same check server-side).
	if !crypto.VerifySessionKey([]byte(message), signature, [][]byte{signer.PublicKeyBytes()}) {
		fmt.Println("signature failed local verification — this would be rejected")
		os.Exit(1)
	}
	fmt.Println("signature verifies against the session key\n")

	// Step 5: Print the ready-to-POST request body.
	secret := os.Getenv("ORDERBOOK_SECRET")
	req := api.ActionRequest{
		Kind:         "create_order",
		Identity:     string(action.Identity),
		Nonce:        action.Nonce,
		OrderID:      string(action.Order.OrderID),
		OrderType:    "limit",
		Side:         "bid",
		Base:         string(action.Order.Pair.Base),
		Quote:        string(action.Order.Pair.Quote),
		Price:        action.Order.Price,
		Quantity:     action.Order.Quantity,
		SignatureHex: hex.EncodeToString(signature),
		SecretHex:    hex.EncodeToString([]byte(secret)),
	}
	body, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling request: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("POST http://localhost:8080/api/v1/actions")
	fmt.Println("Content-Type: application/json")
	fmt.Println(string(body))
}
