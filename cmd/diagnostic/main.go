// File: cmd/diagnostic/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/iyunix/go-bluebox/internal/config"
	"github.com/iyunix/go-bluebox/internal/domain"
	"github.com/iyunix/go-bluebox/internal/gateway"
	"github.com/iyunix/go-bluebox/internal/logger"
	"github.com/iyunix/go-bluebox/internal/services/ai"
)

func main() {
	prompt := flag.String("prompt", "I have had a mild headache since this morning. What should I do?", "message to send")
	direct := flag.Bool("direct", false, "call the model provider directly instead of the inference endpoint")
	url := flag.String("url", "", "inference endpoint (defaults to INFERENCE_URL)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.FromEnv("bluebox-diagnostic", cfg.Environment, cfg.LogLevel, "console")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StreamTimeout)
	defer cancel()

	if *direct {
		err = runProvider(ctx, cfg, *prompt)
	} else {
		target := cfg.InferenceURL
		if *url != "" {
			target = *url
		}
		err = runGateway(ctx, gateway.NewHTTPGateway(target, nil, log), target, *prompt)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nFAILED: %v\n", err)
		os.Exit(1)
	}
}

// runGateway streams the prompt the same way a session controller does.
func runGateway(ctx context.Context, gw gateway.Gateway, target, prompt string) error {
	fmt.Printf("Streaming from %s\n", target)
	started := time.Now()

	s, err := gw.StreamReply(ctx, []gateway.Turn{{Role: domain.RoleUser, Content: prompt}})
	if err != nil {
		return err
	}

	n := 0
	reply, err := gateway.ReadAll(s, func(frag string) {
		n++
		fmt.Printf("[%03d] %q\n", n, frag)
	})
	fmt.Printf("\n%d fragments in %s\n\n%s\n", n, time.Since(started).Round(time.Millisecond), reply)
	return err
}

func runProvider(ctx context.Context, cfg *config.Config, prompt string) error {
	aiConfig := ai.DefaultConfig()
	aiConfig.APIKey = cfg.OpenAIAPIKey
	aiConfig.BaseURL = cfg.OpenAIBaseURL
	aiConfig.Model = cfg.ChatModel
	aiConfig.Temperature = cfg.Temperature
	aiConfig.Timeout = cfg.StreamTimeout
	if err := aiConfig.Validate(); err != nil {
		return err
	}

	fmt.Printf("Streaming from provider, model %s\n", aiConfig.Model)
	n := 0
	return ai.NewOpenAIProvider(aiConfig).StreamChat(ctx, []gateway.Turn{
		{Role: domain.RoleSystem, Content: cfg.SystemPrompt},
		{Role: domain.RoleUser, Content: prompt},
	}, func(delta string) error {
		n++
		fmt.Printf("[%03d] %q\n", n, delta)
		return nil
	})
}
