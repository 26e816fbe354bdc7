// Command loadtest drives a running server with many concurrent group
// chats: each pair of users registers, one creates a group with the
// other, and both spam messages over the live stream.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	BaseURL   = "http://localhost:8080"
	WSBase    = "ws://localhost:8080"
	PairCount = 250 // Start small; each pair is two users and one group.
	MsgCount  = 20  // Messages per user
)

type AuthResponse struct {
	Token    string `json:"access_token"`
	ID       int    `json:"id"`
	Username string `json:"username"`
}

type CreateGroupResponse struct {
	GroupID string `json:"group_id"`
}

func main() {
	log.Printf("starting load test: %d users, %d messages each", PairCount*2, MsgCount)
	var wg sync.WaitGroup

	for i := 0; i < PairCount; i++ {
		wg.Add(1)
		go func(pairID int) {
			defer wg.Done()
			runPair(pairID)
		}(i)
	}

	wg.Wait()
	log.Println("load test complete")
}

func runPair(pairID int) {
	userA := fmt.Sprintf("u_%d_a", pairID)
	userB := fmt.Sprintf("u_%d_b", pairID)
	pass := "password123"

	authA := authenticate(userA, pass)
	authB := authenticate(userB, pass)
	if authA == nil || authB == nil {
		return
	}

	groupID := createGroup(authA.Token, fmt.Sprintf("pair-%d", pairID), authB.ID)
	if groupID == "" {
		return
	}

	var wsWg sync.WaitGroup
	wsWg.Add(2)
	go spamGroup(&wsWg, authA.Token, groupID, userA)
	go spamGroup(&wsWg, authB.Token, groupID, userB)
	wsWg.Wait()
}

// authenticate registers (ignoring "already exists") and logs in.
func authenticate(username, password string) *AuthResponse {
	postJSON("/register", map[string]string{"username": username, "password": password})

	resp, err := postJSON("/login", map[string]string{"username": username, "password": password})
	if err != nil {
		log.Printf("login failed [%s]: %v", username, err)
		return nil
	}
	defer resp.Body.Close()

	var data AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil || data.Token == "" {
		log.Printf("login decode failed [%s]: %v", username, err)
		return nil
	}
	return &data
}

func createGroup(token, name string, memberID int) string {
	body, _ := json.Marshal(map[string]any{
		"name":       name,
		"member_ids": []int{memberID},
	})
	req, _ := http.NewRequest("POST", BaseURL+"/api/groups", bytes.NewBuffer(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		log.Printf("create group failed: %v", err)
		return ""
	}
	defer resp.Body.Close()

	var data CreateGroupResponse
	json.NewDecoder(resp.Body).Decode(&data)
	return data.GroupID
}

func spamGroup(wg *sync.WaitGroup, token, groupID, user string) {
	defer wg.Done()

	url := fmt.Sprintf("%s/api/groups/%s/stream?token=%s", WSBase, groupID, token)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Printf("ws connect failed [%s]: %v", user, err)
		return
	}
	defer conn.Close()

	// Drain snapshots so the server never has to drop us.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for i := 0; i < MsgCount; i++ {
		msg := map[string]string{
			"message": fmt.Sprintf("load test msg %d from %s", i, user),
		}
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("ws write failed [%s]: %v", user, err)
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func postJSON(path string, payload any) (*http.Response, error) {
	body, _ := json.Marshal(payload)
	return http.Post(BaseURL+path, "application/json", bytes.NewBuffer(body))
}
