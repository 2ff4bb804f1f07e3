package main

import (
	"fmt"
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"
)

// Generates the bcrypt hash for the operator service-account secret, for use
// as OPERATOR_SECRET_HASH / auth.operator_secret_hash in configuration.
func main() {
	if len(os.Args) != 2 {
		log.Fatalf("usage: %s <operator-secret>", os.Args[0])
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(os.Args[1]), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash secret: %v", err)
	}

	fmt.Println(string(hash))
}
