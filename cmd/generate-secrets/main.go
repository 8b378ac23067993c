package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/staycare/booking-backend/internal/utils"
)

func main() {
	length := flag.Int("bytes", 32, "number of random bytes in the secret")
	flag.Parse()

	fmt.Println("===========================================")
	fmt.Println("JWT Secret Generator for StayCare")
	fmt.Println("===========================================")
	fmt.Println()

	secret, err := utils.GenerateSecret(*length)
	if err != nil {
		log.Fatalf("Failed to generate secret: %v", err)
	}

	fmt.Println("Add this to your .env file or deployment secrets:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", secret)
	fmt.Println()
	fmt.Println("IMPORTANT: Keep this secret safe and never commit it to version control!")
	fmt.Println("===========================================")
}
