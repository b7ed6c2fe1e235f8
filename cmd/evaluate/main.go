package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"github.com/casevault/citeline/internal/application/services"
	"github.com/casevault/citeline/internal/evaluation"
	"github.com/casevault/citeline/internal/infrastructure/observability"
	"github.com/casevault/citeline/pkg/config"
)

func main() {
	goldenPath := flag.String("golden", "config/golden_cases.json", "path to the golden case set")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	observability.InitLogger(cfg.App.ServiceName+"-evaluate", cfg.App.Environment)

	cases, err := evaluation.LoadGoldenCases(*goldenPath)
	if err != nil {
		log.Fatalf("Failed to load golden cases: %v", err)
	}
	if err := evaluation.ValidateGoldenCases(cases); err != nil {
		log.Fatalf("Invalid golden cases: %v", err)
	}

	service := services.NewChronologyService(cfg.Selection, *observability.GetLogger())
	guardrails := evaluation.NewGuardrails(evaluation.GuardrailConfig{
		MaxEntriesPerPatient: cfg.Selection.HardCapPerPatient,
	})

	runner := evaluation.NewRunner(service, guardrails)
	summary, err := runner.Run(context.Background(), cases)
	if err != nil {
		log.Fatalf("Evaluation failed: %v", err)
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))
}
