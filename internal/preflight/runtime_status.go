package preflight

import (
	"context"
	"fmt"
	"time"

	"scott/internal/logs"
)

// CheckServer reports whether a server answers on bind and how many log
// sessions it is running.
func CheckServer(ctx context.Context, bind string) Result {
	const name = "Server"

	client, err := logs.NewClient(bind)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid bind %q: %v", bind, err)}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	sessions, err := client.Sessions(checkCtx)
	if err != nil {
		if logs.IsAPIUnavailable(err) {
			return Result{Name: name, Detail: fmt.Sprintf("not running on %s", bind)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", bind, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("running on %s (%d log sessions)", bind, len(sessions))}
}
