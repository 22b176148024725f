// Copyright (C) 2025 FinCove Pvt. Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

type sessionInfo struct {
	SessionID   string `json:"session_id"`
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	CompletedAt string `json:"completed_at"`
	TurnCount   int    `json:"turn_count"`
}

type turnInfo struct {
	Timestamp string `json:"timestamp"`
	Domain    string `json:"domain"`
	Intent    string `json:"intent"`
	Query     string `json:"query"`
	Response  string `json:"response"`
}

var (
	// Session administration commands
	sessionCmd = &cobra.Command{
		Use:   "session",
		Short: "Manage persisted voice sessions",
		Long:  `List, inspect, or delete voice sessions stored in Weaviate.`,
	}
	listSessionsCmd = &cobra.Command{
		Use:   "list",
		Short: "List all persisted voice sessions",
		Run:   runListSessions,
	}
	sessionHistoryCmd = &cobra.Command{
		Use:   "history [session_id]",
		Short: "Show the persisted turns of one session",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionHistory,
	}
	deleteSessionCmd = &cobra.Command{
		Use:   "delete [session_id]",
		Short: "Delete a voice session and its history",
		Args:  cobra.ExactArgs(1),
		Run:   runDeleteSession,
	}

	// OTP commands
	otpCmd = &cobra.Command{
		Use:   "otp",
		Short: "Trigger OTP verification through the gateway",
	}
	sendOTPCmd = &cobra.Command{
		Use:   "send [phone]",
		Short: "Send a one-time password to a phone number",
		Args:  cobra.ExactArgs(1),
		Run:   runSendOTP,
	}
	checkOTPCmd = &cobra.Command{
		Use:   "check [phone] [code]",
		Short: "Check a one-time password",
		Args:  cobra.ExactArgs(2),
		Run:   runCheckOTP,
	}
	otpSessionID string

	// Knowledge base commands
	ingestCmd = &cobra.Command{
		Use:   "ingest [file]",
		Short: "Ingest a document into one domain's knowledge base",
		Args:  cobra.ExactArgs(1),
		Run:   runIngest,
	}
	ingestDataSpace string

	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Check the gateway is up",
		Run:   runHealth,
	}
)

func init() {
	sessionCmd.AddCommand(listSessionsCmd, sessionHistoryCmd, deleteSessionCmd)
	otpCmd.AddCommand(sendOTPCmd, checkOTPCmd)
	checkOTPCmd.Flags().StringVar(&otpSessionID, "session", "",
		"Voice session to mark verified on a successful check")
	ingestCmd.Flags().StringVarP(&ingestDataSpace, "data-space", "d", "banking",
		"Knowledge base domain to ingest into")
}

func gatewayURL() string {
	url := os.Getenv("MAYA_GATEWAY_URL")
	if url == "" {
		url = "http://localhost:12300"
	}
	return url
}

func postJSON(path string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return http.Post(gatewayURL()+path, "application/json", bytes.NewBuffer(body))
}

func runListSessions(cmd *cobra.Command, args []string) {
	resp, err := http.Get(gatewayURL() + "/v1/sessions")
	if err != nil {
		log.Fatalf("Failed to connect to the gateway: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Gateway returned an error: %s", resp.Status)
	}

	// The result from Weaviate is nested, so decode into a generic map
	var result map[string]map[string][]sessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Fatalf("Failed to parse the gateway response: %v", err)
	}

	sessions := result["Get"]["VoiceSession"]
	if len(sessions) == 0 {
		fmt.Println("No persisted sessions found.")
		return
	}

	fmt.Println("Persisted Sessions:")
	fmt.Println("------------------------------------------------------------------")
	for _, s := range sessions {
		fmt.Printf("ID: %s\nTitle: %s\nCompleted: %s\nTurns: %d\nSummary: %s\n\n",
			s.SessionID, s.Title, s.CompletedAt, s.TurnCount, s.Summary)
	}
}

func runSessionHistory(cmd *cobra.Command, args []string) {
	sessionID := args[0]
	resp, err := http.Get(fmt.Sprintf("%s/v1/sessions/%s/history", gatewayURL(), sessionID))
	if err != nil {
		log.Fatalf("Failed to connect to the gateway: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Gateway returned an error: %s", resp.Status)
	}

	var result map[string]map[string][]turnInfo
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Fatalf("Failed to parse the gateway response: %v", err)
	}

	turns := result["Get"]["VoiceTurn"]
	if len(turns) == 0 {
		fmt.Printf("No turns found for session %s.\n", sessionID)
		return
	}

	for _, t := range turns {
		fmt.Printf("[%s] (%s/%s)\nUser: %s\nMaya: %s\n\n",
			t.Timestamp, t.Domain, t.Intent, t.Query, t.Response)
	}
}

func runDeleteSession(cmd *cobra.Command, args []string) {
	sessionID := args[0]
	req, err := http.NewRequest(http.MethodDelete,
		fmt.Sprintf("%s/v1/sessions/%s", gatewayURL(), sessionID), nil)
	if err != nil {
		log.Fatalf("Failed to create the delete request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Failed to send the delete request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Gateway returned an error: %s", resp.Status)
	}
	fmt.Printf("Successfully deleted session: %s\n", sessionID)
}

func runSendOTP(cmd *cobra.Command, args []string) {
	resp, err := postJSON("/v1/auth/send-otp", map[string]string{"phone": args[0]})
	if err != nil {
		log.Fatalf("Failed to connect to the gateway: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Gateway returned an error: %s %s", resp.Status, string(body))
	}
	fmt.Println("OTP sent.")
}

func runCheckOTP(cmd *cobra.Command, args []string) {
	payload := map[string]string{"phone": args[0], "code": args[1]}
	if otpSessionID != "" {
		payload["session_id"] = otpSessionID
	}
	resp, err := postJSON("/v1/auth/verify-otp", payload)
	if err != nil {
		log.Fatalf("Failed to connect to the gateway: %v", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		fmt.Println("Verified.")
	case http.StatusUnauthorized:
		fmt.Println("Incorrect code.")
		os.Exit(1)
	default:
		body, _ := io.ReadAll(resp.Body)
		log.Fatalf("Gateway returned an error: %s %s", resp.Status, string(body))
	}
}

func runIngest(cmd *cobra.Command, args []string) {
	path := args[0]
	content, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", path, err)
	}
	resp, err := postJSON("/v1/documents", map[string]string{
		"content":    string(content),
		"source":     filepath.Base(path),
		"data_space": ingestDataSpace,
	})
	if err != nil {
		log.Fatalf("Failed to connect to the gateway: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		log.Fatalf("Gateway returned an error: %s %s", resp.Status, string(body))
	}
	fmt.Printf("Ingested %s into the %s knowledge base.\n", filepath.Base(path), ingestDataSpace)
}

func runHealth(cmd *cobra.Command, args []string) {
	resp, err := http.Get(gatewayURL() + "/health")
	if err != nil {
		log.Fatalf("Failed to connect to the gateway: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Gateway returned an error: %s", resp.Status)
	}
	fmt.Println("Gateway is healthy.")
}
