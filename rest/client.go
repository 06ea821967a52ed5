package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net"
	"net/http"
	"net/http/httputil"
	"os"
	"time"

	"github.com/XBurnsX/toutiebudget-sync/config"
)

// Background-sync timeouts, looser than the interactive foreground client:
// 10s to connect, 30s waiting on a response, 45s for the whole exchange.
const connectTimeout = 10 * time.Second
const readTimeout = 30 * time.Second
const totalTimeout = 45 * time.Second

var defaultHttpClient = &http.Client{
	Timeout: totalTimeout,
	Transport: &http.Transport{
		DialContext:           (&net.Dialer{Timeout: connectTimeout}).DialContext,
		ResponseHeaderTimeout: readTimeout,
	},
}

// Client is a generic Rest client for making HTTP requests.
type Client struct {
	Token  string
	Client *http.Client
	Base   string
}

// NewClient returns a new Client sending the given bearer token. Base is the
// scheme+domain to hit for all requests.
func NewClient(token, base string) *Client {
	return &Client{
		Token:  token,
		Client: defaultHttpClient,
		Base:   base,
	}
}

// NewRequest creates a new Request and sets the Authorization header based on
// the client's token.
func (c *Client) NewRequest(method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, c.Base+path, body)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	req.Header.Add("User-Agent", fmt.Sprintf("toutiebudget-sync/v%s", config.Version))
	if method == "POST" || method == "PATCH" || method == "PUT" {
		req.Header.Add("Content-Type", "application/json; charset=utf-8")
	}
	return req, nil
}

// Do performs the HTTP request. If the HTTP response is in the 2xx range,
// Unmarshal the response body into v (v may be nil), otherwise return an
// *Error carrying the status code and the response body as diagnostic text.
func (c *Client) Do(r *http.Request, v interface{}) error {
	b := new(bytes.Buffer)
	if os.Getenv("DEBUG_HTTP_TRAFFIC") == "true" || os.Getenv("DEBUG_HTTP_REQUEST") == "true" {
		bits, err := httputil.DumpRequestOut(r, true)
		if err != nil {
			return err
		}
		b.Write(bits)
	}
	res, err := c.Client.Do(r)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if os.Getenv("DEBUG_HTTP_TRAFFIC") == "true" || os.Getenv("DEBUG_HTTP_RESPONSES") == "true" {
		bits, err := httputil.DumpResponse(res, true)
		if err != nil {
			return err
		}
		b.Write(bits)
	}
	if b.Len() > 0 {
		_, err = b.WriteTo(os.Stderr)
		if err != nil {
			return err
		}
	}
	resBody, err := ioutil.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return newError(res.StatusCode, resBody)
	}
	if v == nil || len(resBody) == 0 {
		return nil
	}
	return json.Unmarshal(resBody, v)
}
