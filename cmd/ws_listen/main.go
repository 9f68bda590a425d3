package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// ws_listen connects to the knobd state websocket and prints every frame.

type frame struct {
	Type string          `json:"type"`
	Ts   time.Time       `json:"ts"`
	Data json.RawMessage `json:"data"`
}

func main() {
	var (
		wsURL  = flag.String("ws", "ws://127.0.0.1:3002/ws", "knobd state websocket URL")
		pretty = flag.Bool("pretty", false, "Print the raw JSON of each frame, indented")
		only   = flag.String("types", "", "Comma-separated frame types to print (empty prints all)")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	filter := map[string]bool{}
	for _, t := range strings.Split(*only, ",") {
		if t = strings.TrimSpace(t); t != "" {
			filter[t] = true
		}
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	var writeMu sync.Mutex

	// knobd pings every 20s; answer and extend the deadline.
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			if messageType != websocket.TextMessage {
				fmt.Printf("[BINARY] %d bytes\n", len(message))
				continue
			}
			printFrame(message, filter, *pretty)
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

func printFrame(message []byte, filter map[string]bool, pretty bool) {
	var f frame
	if err := json.Unmarshal(message, &f); err != nil {
		fmt.Printf("[TEXT] %s\n", string(message))
		return
	}
	if len(filter) > 0 && !filter[f.Type] {
		return
	}

	if pretty {
		var v any
		if err := json.Unmarshal(message, &v); err == nil {
			out, _ := json.MarshalIndent(v, "", "  ")
			fmt.Printf("%s\n", out)
			return
		}
	}

	fmt.Println(summarize(f))
}

// summarize renders the frames knobd sends as one line each.
func summarize(f frame) string {
	ts := f.Ts.Local().Format("15:04:05.000")

	var d map[string]any
	if err := json.Unmarshal(f.Data, &d); err != nil {
		return fmt.Sprintf("%s [%s] %s", ts, strings.ToUpper(f.Type), string(f.Data))
	}

	switch f.Type {
	case "state_init":
		return fmt.Sprintf("%s [INIT] session=%v position=%v laps=%v base_note=%v idle=%v",
			ts, d["session_id"], d["position"], d["laps"], d["base_note"], d["idle"])
	case "position_changed":
		return fmt.Sprintf("%s [POSITION] %v (delta %v, laps %v, sector %v, %.3f turns)",
			ts, d["position"], d["delta"], d["laps"], d["sector"], d["turns"])
	case "lap_changed":
		return fmt.Sprintf("%s [LAP] %v (direction %v)", ts, d["laps"], d["direction"])
	case "pitch_changed":
		return fmt.Sprintf("%s [PITCH] note %.2f, %.2f Hz, %v cents, bend %v",
			ts, d["note"], d["frequency_hz"], d["cents"], d["bend"])
	case "motion_changed":
		return fmt.Sprintf("%s [MOTION] %.2f turns/s (direction %v, fast %v)",
			ts, d["turns_per_sec"], d["direction"], d["fast"])
	case "idle_changed":
		return fmt.Sprintf("%s [IDLE] %v", ts, d["idle"])
	default:
		return fmt.Sprintf("%s [%s] %s", ts, strings.ToUpper(f.Type), string(f.Data))
	}
}
