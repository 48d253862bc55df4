package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"walrus-agent/sdk/go/walrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	baseURL := os.Getenv("WALRUS_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8001"
	}
	prompt := strings.Join(os.Args[1:], " ")
	if prompt == "" {
		prompt = "What is my wallet address and balance?"
	}

	client, err := walrus.NewClient(baseURL, nil)
	if err != nil {
		panic(err)
	}
	if err := client.Health(ctx); err != nil {
		panic(err)
	}

	for fragment, err := range client.ChatStream(ctx, prompt) {
		if err != nil {
			panic(err)
		}
		fmt.Println(fragment)
		fmt.Println("-------------------")
	}
}
