package httputil

import (
	"net/http"
	"time"
)

// DefaultTimeout bounds a whole dataset download, body included. The
// pre-joined CSV is tens of megabytes.
const DefaultTimeout = 5 * time.Minute

const UserAgent = "airquality-dashboard/1.0"

// NewClient returns an HTTP client with standard timeout configuration.
func NewClient() *http.Client {
	return &http.Client{
		Timeout: DefaultTimeout,
	}
}

// NewRequest builds a GET request carrying the dashboard's User-Agent.
func NewRequest(url string) (*http.Request, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	return req, nil
}
