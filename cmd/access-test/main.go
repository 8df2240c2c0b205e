package main

import (
	"fmt"
	"log"
	"os"

	"meditrackctl/plugins/supabase"
	"meditrackctl/smoketest"
)

const (
	backendURLEnvVar = "VITE_SUPABASE_URL"
	anonKeyEnvVar    = "VITE_SUPABASE_ANON_KEY" //nolint:gosec
)

func main() {
	backendURL := os.Getenv(backendURLEnvVar)
	if backendURL == "" {
		log.Fatalf("please set $%s\n", backendURLEnvVar)
	}
	anonKey := os.Getenv(anonKeyEnvVar)
	if anonKey == "" {
		log.Fatalf("please set $%s\n", anonKeyEnvVar)
	}

	fmt.Println("============================================================")
	fmt.Println("BACKEND ACCESS TEST - MEDITRACK")
	fmt.Println("============================================================")
	fmt.Println()

	checker := &smoketest.Checker{
		Client: supabase.NewClient(backendURL, anonKey),
	}
	results := checker.Run()

	if smoketest.AllPassed(results) {
		fmt.Println("🎉 ALL TESTS PASSED! Backend access is working correctly.")
		fmt.Println()
	}

	fmt.Println("============================================================")
	fmt.Println("TEST COMPLETE")
	fmt.Println("============================================================")
}
