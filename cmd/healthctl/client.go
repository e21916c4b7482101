package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type client struct {
	BaseURL   string
	APIKey    string // solo para /health/*
	OutFormat string // "json" | "text"
	HTTP      *http.Client
	out       io.Writer
}

func (c *client) do(method, path string, body []byte, headers map[string]string) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rdr)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, b, nil
}

// call hace el request y falla si el status no es 2xx.
func (c *client) call(op, method, path string, payload any, headers map[string]string) (int, []byte, error) {
	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = b
	}
	status, resp, err := c.do(method, path, body, headers)
	if err != nil {
		return 0, nil, err
	}
	if status/100 != 2 {
		return status, resp, fmt.Errorf("%s fallo: status=%d body=%s", op, status, strings.TrimSpace(string(resp)))
	}
	return status, resp, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Fprintln(c.out, string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Fprintln(c.out, strings.TrimSpace(string(body)))
	} else {
		fmt.Fprintf(c.out, "status=%d\n", status)
	}
}
