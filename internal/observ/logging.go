package observ

import (
	"encoding/json"
	"fmt"
	"time"
)

// Log emits one JSON line per event. Invocations are short-lived scheduled
// runs, so structured stdout is the whole logging story.
func Log(event string, kv map[string]any) {
	if kv == nil {
		kv = map[string]any{}
	}
	kv["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	kv["event"] = event
	b, _ := json.Marshal(kv)
	fmt.Println(string(b))
}
