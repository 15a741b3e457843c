package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// session-sim drives one scripted call against the concierge-service tool API.
func main() {
	var (
		baseURL = flag.String("base-url", getenv("BASE_URL", "http://localhost:8080"), "concierge-service base url")
		room    = flag.String("room", getenv("ROOM_NAME", ""), "room name (generated when empty)")
		name    = flag.String("name", getenv("CALLER_NAME", "Jane Doe"), "caller name")
		phone   = flag.String("phone", getenv("CALLER_PHONE", "5551234567"), "caller 10-digit contact number")
		date    = flag.String("date", getenv("BOOK_DATE", time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")), "booking date YYYY-MM-DD")
		at      = flag.String("time", getenv("BOOK_TIME", "10:00"), "booking time")
		newAt   = flag.String("new-time", getenv("MODIFY_TIME", "14:00"), "time to move the booking to")
		cancel  = flag.Bool("cancel", true, "cancel the booking before closing")
	)
	flag.Parse()

	if strings.TrimSpace(*phone) == "" {
		fatal("CALLER_PHONE is required")
	}
	base := strings.TrimRight(*baseURL, "/")
	c := &client{base: base, http: &http.Client{Timeout: 10 * time.Second}}

	var sess struct {
		SessionID string `json:"session_id"`
		RoomName  string `json:"room_name"`
	}
	if err := c.post("/api/v1/sessions", map[string]any{"room_name": *room}, &sess); err != nil {
		fatal(err.Error())
	}
	fmt.Printf("session=%s room=%s\n", sess.SessionID, sess.RoomName)

	steps := []step{
		{"identify_user", map[string]any{"phone_number": *phone}},
		{"fetch_slots", map[string]any{"date": *date}},
		{"book_appointment", map[string]any{"name": *name, "contact_number": *phone, "date": *date, "time_str": *at}},
		{"retrieve_appointments", map[string]any{}},
		{"modify_appointment", map[string]any{"appointment_number": 1, "new_date": *date, "new_time": *newAt}},
	}
	if *cancel {
		steps = append(steps,
			step{"retrieve_appointments", map[string]any{}},
			step{"cancel_appointment", map[string]any{"appointment_number": 1}},
		)
	}
	steps = append(steps, step{"summarize_and_exit", map[string]any{}})

	for _, st := range steps {
		var reply struct {
			Outcome string `json:"outcome"`
			Message string `json:"message"`
		}
		if err := c.post("/api/v1/sessions/"+sess.SessionID+"/tools/"+st.tool, st.args, &reply); err != nil {
			fatal(fmt.Sprintf("%s: %v", st.tool, err))
		}
		fmt.Printf("%-22s outcome=%s\n  %s\n", st.tool, reply.Outcome, reply.Message)
	}
}

type step struct {
	tool string
	args map[string]any
}

type client struct {
	base string
	http *http.Client
}

func (c *client) post(path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return json.Unmarshal(raw, out)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
