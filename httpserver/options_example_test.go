package httpserver_test

import (
	"fmt"
	"time"

	"github.com/purposeinplay/notifier/httpserver"
)

func ExampleWithAddress() {
	opt := httpserver.WithAddress(":9090")

	fmt.Println(opt)
	// Output: server.Address: :9090
}

func ExampleWithShutdownTimeout() {
	opt := httpserver.WithShutdownTimeout(15 * time.Second)

	fmt.Println(opt)
	// Output: server.ShutdownTimeout: 15s
}

func ExampleWithServerTimeouts() {
	opt := httpserver.WithServerTimeouts(
		time.Second,
		2*time.Second,
		3*time.Second,
		4*time.Second,
	)

	fmt.Println(opt)
	// Output:
	// server.WriteTimeout: 1s
	// server.ReadTimeout: 2s
	// server.IdleTimeout: 3s
	// server.ReadHeaderTimeout: 4s
}
