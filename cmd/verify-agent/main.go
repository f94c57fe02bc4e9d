package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"factory-erp/internal/ai"
	"factory-erp/internal/core"
	"factory-erp/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load() // Load .env if present

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENAI_API_KEY not set")
	}

	appLog, err := logger.NewZapLogger("development")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	agent := ai.NewAgent(apiKey, appLog)
	ctx := context.Background()

	in := ai.PlanInput{
		Today: time.Now(),
		Needs: []core.ProductionNeed{
			{ProductID: "PROD-001", ProductName: "Pallet PBR", OpenDemand: 40, FreeStock: 10, ForOrders: 30, TotalQuantity: 30, Reason: core.NeedForOrders},
			{ProductID: "PROD-002", ProductName: "Caixa 60x40", FreeStock: 2, ForMinimum: 8, TotalQuantity: 8, Reason: core.NeedForMinimum},
		},
	}

	fmt.Printf("PRIORITISING %d NEEDS\n", len(in.Needs))
	suggestions, err := agent.Prioritise(ctx, in)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	fmt.Printf("\n--- SUGGESTIONS ---\n")
	for _, sg := range suggestions {
		fmt.Printf("- %s x%d [%s] %s\n", sg.ProductID, sg.SuggestedQuantity, sg.Priority, sg.Reason)
	}
}
