// Command forecastauth obtains user access tokens for the posting account
// through the Twitter PIN flow.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/rewired-gh/forecastbot/internal/config"
	"github.com/rewired-gh/forecastbot/internal/twitter"
)

var envPath = flag.String("env", ".env", "Path to .env file with CONSUMER_KEY and CONSUMER_SECRET")

func main() {
	flag.Parse()

	if err := config.LoadDotEnv(*envPath); err != nil {
		log.Fatalf("Failed to load environment: %v", err)
	}
	consumerKey := os.Getenv("CONSUMER_KEY")
	consumerSecret := os.Getenv("CONSUMER_SECRET")
	if consumerKey == "" || consumerSecret == "" {
		log.Fatalf("CONSUMER_KEY and CONSUMER_SECRET must be set")
	}

	auth := twitter.NewPINAuthorizer(consumerKey, consumerSecret)
	authURL, err := auth.AuthorizationURL()
	if err != nil {
		log.Fatalf("Failed to get request token: %v", err)
	}

	fmt.Printf("Open this URL and authorize the app:\n%s\n\nEnter PIN: ", authURL)
	pin, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		log.Fatalf("Failed to read PIN: %v", err)
	}

	token, secret, err := auth.Exchange(strings.TrimSpace(pin))
	if err != nil {
		log.Fatalf("Failed to get access token: %v", err)
	}

	fmt.Println("\nAdd these lines to your .env file:")
	fmt.Printf("ACCESS_TOKEN=%s\n", token)
	fmt.Printf("ACCESS_TOKEN_SECRET=%s\n", secret)
}
