package store

import (
	"os"
	"strings"
	"sync"

	"github.com/BuzzLyutic/todo-query/internal/query"
	"github.com/BuzzLyutic/todo-query/internal/sdk"
)

// EnvVar selects the execution context: "server" or anything else for client.
const EnvVar = "TODOQUERY_ENV"

type Environment int

const (
	// EnvAuto defers to DetectEnvironment.
	EnvAuto Environment = iota
	EnvClient
	EnvServer
)

func (e Environment) String() string {
	switch e {
	case EnvClient:
		return "client"
	case EnvServer:
		return "server"
	}
	return "auto"
}

func ParseEnvironment(v string) Environment {
	if strings.EqualFold(strings.TrimSpace(v), "server") {
		return EnvServer
	}
	return EnvClient
}

var (
	detectOnce sync.Once
	detected   Environment
)

// DetectEnvironment reads EnvVar once per process.
func DetectEnvironment() Environment {
	detectOnce.Do(func() {
		detected = ParseEnvironment(os.Getenv(EnvVar))
	})
	return detected
}

var (
	sharedOnce   sync.Once
	sharedClient *query.Client
)

// QueryClient returns the query client for env. On the server every call
// gets a fresh client so requests never share cached data; on the client the
// first call creates a process-wide client and later opts are ignored.
func QueryClient(env Environment, opts query.Options) *query.Client {
	if env == EnvAuto {
		env = DetectEnvironment()
	}
	if env == EnvServer {
		return query.New(opts)
	}
	sharedOnce.Do(func() {
		sharedClient = query.New(opts)
	})
	return sharedClient
}

// DefaultClientOptions are the cache defaults with 4xx responses treated as
// final.
func DefaultClientOptions() query.Options {
	opts := query.DefaultOptions()
	opts.ShouldRetry = sdk.IsRetryable
	return opts
}
