package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ashishexplains17/websockets/internal/app"
)

func main() {
	hubURL := flag.String("hub", app.Getenv("RELAY_HUB_URL", "ws://localhost:8080/ws"), "hub websocket URL")
	storeURL := flag.String("store", app.Getenv("RELAY_STORE_URL", "http://localhost:8081"), "store service base URL")
	username := flag.String("user", os.Getenv("RELAY_USER"), "account username")
	password := flag.String("pass", os.Getenv("RELAY_PASS"), "account password")
	flag.Parse()

	var channel string
	if args := flag.Args(); len(args) >= 1 {
		channel = args[0]
	}

	cfg := app.ClientConfig{
		HubURL:   *hubURL,
		StoreURL: *storeURL,
		Username: *username,
		Password: *password,
		Channel:  channel,
	}

	if err := app.RunClient(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
