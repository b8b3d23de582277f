// Command client is a small CLI against ServiceFront's HTTP API, retrying
// once against a server's leader hint on a NotLeader response.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

func main() {
	addr := flag.String("addr", "localhost:8000", "Server HTTP address")
	user := flag.String("user", "", "Username for login")
	pass := flag.String("pass", "", "Password for login")
	token := flag.String("token", "", "Bearer token (skips login)")
	cmd := flag.String("cmd", "movies", "movies|book|confirm|cancel|mybookings|chat")
	movieID := flag.String("movie", "", "Movie ID for book")
	seats := flag.String("seats", "", "Comma-separated seat numbers for book")
	bookingID := flag.String("booking", "", "Booking ID for confirm/cancel")
	method := flag.String("method", "card", "Payment method for confirm")
	clientID := flag.String("client-id", "cli", "Idempotency client ID")
	requestSeq := flag.Uint64("seq", 1, "Idempotency request sequence")
	prompt := flag.String("prompt", "", "Prompt for chat")
	flag.Parse()

	c := &client{addr: *addr, token: *token, http: &http.Client{Timeout: 10 * time.Second}}

	if c.token == "" {
		if *user == "" || *pass == "" {
			log.Fatal("either -token or both -user and -pass are required")
		}
		resp, err := c.login(*user, *pass)
		if err != nil {
			log.Fatalf("login failed: %v", err)
		}
		c.token = resp["token"].(string)
	}

	var (
		result interface{}
		err    error
	)

	switch *cmd {
	case "movies":
		result, err = c.do(http.MethodGet, "/movies", nil)
	case "mybookings":
		result, err = c.do(http.MethodGet, "/bookings", nil)
	case "book":
		result, err = c.do(http.MethodPost, "/bookings", map[string]interface{}{
			"MovieID": *movieID, "Seats": parseSeats(*seats), "ClientID": *clientID, "RequestSeq": *requestSeq,
		})
	case "confirm":
		result, err = c.do(http.MethodPost, "/bookings/confirm", map[string]interface{}{
			"BookingID": *bookingID, "Method": *method, "ClientID": *clientID, "RequestSeq": *requestSeq,
		})
	case "cancel":
		result, err = c.do(http.MethodPost, "/bookings/cancel", map[string]interface{}{
			"BookingID": *bookingID, "ClientID": *clientID, "RequestSeq": *requestSeq,
		})
	case "chat":
		result, err = c.do(http.MethodPost, "/chat", map[string]interface{}{"Prompt": *prompt})
	default:
		log.Fatalf("unknown -cmd %q", *cmd)
	}

	if err != nil {
		log.Fatalf("%s failed: %v", *cmd, err)
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
}

type client struct {
	addr  string
	token string
	http  *http.Client
}

func (c *client) login(user, pass string) (map[string]interface{}, error) {
	result, err := c.requestAddr(c.addr, http.MethodPost, "/login", map[string]string{"User": user, "Pass": pass}, false)
	if err != nil {
		return nil, err
	}
	return result.(map[string]interface{}), nil
}

// do performs the request against c.addr, retrying exactly once against the
// leaderHint if the server responds NotLeader.
func (c *client) do(method, path string, body interface{}) (interface{}, error) {
	result, err := c.requestAddr(c.addr, method, path, body, true)
	if hint, ok := err.(*notLeaderError); ok && hint.leaderHint != "" {
		return c.requestAddr(hint.leaderHint, method, path, body, true)
	}
	return result, err
}

type notLeaderError struct{ leaderHint string }

func (e *notLeaderError) Error() string { return "not leader, hint=" + e.leaderHint }

func (c *client) requestAddr(addr, method, path string, body interface{}, authed bool) (interface{}, error) {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, "http://"+addr+path, reqBody)
	if err != nil {
		return nil, err
	}
	if authed && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusMisdirectedRequest {
		var hinted struct{ LeaderHint string }
		json.NewDecoder(resp.Body).Decode(&hinted)
		return nil, &notLeaderError{leaderHint: hinted.LeaderHint}
	}
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(data))
	}

	var result interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil && err != io.EOF {
		return nil, err
	}
	return result, nil
}

func parseSeats(s string) []int {
	if s == "" {
		return nil
	}
	var out []int
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			var n int
			fmt.Sscanf(s[start:i], "%d", &n)
			out = append(out, n)
			start = i + 1
		}
	}
	return out
}
