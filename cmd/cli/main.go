package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
)

const (
	defaultServerURL = "http://localhost:8080"
)

func main() {
	var serverURL string
	flag.StringVar(&serverURL, "server", defaultServerURL, "Server URL")
	flag.StringVar(&serverURL, "s", defaultServerURL, "Server URL (short)")
	flag.Parse()

	if flag.NArg() == 0 {
		printUsage()
		os.Exit(1)
	}

	args := flag.Args()
	serverURL = strings.TrimSuffix(serverURL, "/")

	var result map[string]interface{}
	var err error

	switch args[0] {
	case "connect":
		result, err = runConnect(serverURL, args[1:])
	case "disconnect":
		result, err = postJSON(serverURL+"/disconnect", map[string]interface{}{})
	case "status":
		result, err = getJSON(serverURL + "/status")
	case "testprint":
		result, err = postJSON(serverURL+"/print/test", map[string]interface{}{})
	case "print":
		result, err = runPrint(serverURL, args[1:])
	case "settings":
		result, err = runSettings(serverURL, args[1:])
	case "help":
		printUsage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	printResult(result)

	if success, ok := result["success"].(bool); ok && !success {
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Print Engine CLI

Usage:
  print-cli [flags] <command>

Flags:
  -s, -server <url>    Server URL (default: %s)

Commands:
  connect [bluetooth]
    Scan for a wireless printer and connect

  connect network <host> [port]
    Point the engine at a local-network printer agent

  disconnect
    Drop the current printer connection

  status
    Show connection state for both transports

  testprint
    Print the alignment test page

  print <receipt.json>
    Print a receipt file

  settings [key=value ...]
    Show settings, or patch fields (store_name, store_address,
    store_phone, footer_text, paper_width, printer_host, printer_port)

Examples:
  print-cli connect
  print-cli connect network 192.168.1.100 9100
  print-cli print ./receipt.json
  print-cli settings paper_width=58 store_name="Coffee Corner"

`, defaultServerURL)
}

func runConnect(serverURL string, args []string) (map[string]interface{}, error) {
	body := map[string]interface{}{"mode": "bluetooth"}

	if len(args) > 0 && args[0] == "network" {
		body["mode"] = "network"
		if len(args) > 1 {
			body["host"] = args[1]
		}
		if len(args) > 2 {
			port, err := strconv.Atoi(args[2])
			if err != nil {
				return nil, fmt.Errorf("invalid port: %s", args[2])
			}
			body["port"] = port
		}
	}

	return postJSON(serverURL+"/connect", body)
}

func runPrint(serverURL string, args []string) (map[string]interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("receipt file path is required")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt file: %w", err)
	}

	var r map[string]interface{}
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("receipt file is not valid JSON: %w", err)
	}

	return postJSON(serverURL+"/print", map[string]interface{}{"receipt": r})
}

func runSettings(serverURL string, args []string) (map[string]interface{}, error) {
	if len(args) == 0 {
		return getJSON(serverURL + "/settings")
	}

	patch := map[string]interface{}{}
	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		if !found {
			return nil, fmt.Errorf("settings must be in key=value form, got: %s", arg)
		}
		if n, err := strconv.Atoi(value); err == nil {
			patch[key] = n
		} else {
			patch[key] = value
		}
	}

	return postJSON(serverURL+"/settings", patch)
}

func getJSON(url string) (map[string]interface{}, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp)
}

func postJSON(url string, body map[string]interface{}) (map[string]interface{}, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp)
}

func decodeResponse(resp *http.Response) (map[string]interface{}, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return result, nil
}

func printResult(result map[string]interface{}) {
	// Thai-language message first when the server sent one.
	if msg, ok := result["message"].(string); ok && msg != "" {
		fmt.Println(msg)
	}
	if errMsg, ok := result["error"].(string); ok && errMsg != "" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", errMsg)
		return
	}

	pretty, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", result)
		return
	}
	fmt.Println(string(pretty))
}
