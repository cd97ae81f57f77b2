// Command ledgerctl is the operator CLI for ledgercore (SPEC_FULL §4.10):
// a thin HTTP client that issues one request per invocation and prints the
// result, styled with lipgloss. It never touches the ledger directly — it
// only ever talks to cmd/server's public API, the same boundary finny's
// cmd/tui draws around its services.
//
// A full Bubble Tea program (as finny/cmd/tui uses) is disproportionate
// machinery for one-shot admin commands with no interactive state; only
// lipgloss styling is carried over.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	fieldStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	baseURL := os.Getenv("LEDGERCTL_ADDR")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	client := &client{base: baseURL, http: &http.Client{Timeout: 10 * time.Second}}

	var err error
	switch os.Args[1] {
	case "create-account":
		err = cmdCreateAccount(client, os.Args[2:])
	case "deposit":
		err = cmdDeposit(client, os.Args[2:])
	case "transfer":
		err = cmdTransfer(client, os.Args[2:])
	case "balance":
		err = cmdBalance(client, os.Args[2:])
	case "top-spenders":
		err = cmdTopSpenders(client, os.Args[2:])
	case "schedule":
		err = cmdSchedule(client, os.Args[2:])
	case "cancel":
		err = cmdCancel(client, os.Args[2:])
	case "merge":
		err = cmdMerge(client, os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(titleStyle.Render("ledgerctl") + " — ledgercore operator CLI")
	fmt.Println(fieldStyle.Render(`
  create-account -ts T -id ID
  deposit        -ts T -id ID -amount N
  transfer       -ts T -src ID -dst ID -amount N
  balance        -ts T -id ID [-at T2]
  top-spenders   -ts T -n N
  schedule       -ts T -id ID -amount N -delay D
  cancel         -ts T -id ID -payment ID
  merge          -ts T -parent ID -child ID
`))
}

type client struct {
	base string
	http *http.Client
}

func (c *client) post(path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.http.Post(c.base+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeOrError(resp, out)
}

func (c *client) get(path string, out any) error {
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeOrError(resp, out)
}

func decodeOrError(resp *http.Response, out any) error {
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func cmdCreateAccount(c *client, args []string) error {
	fs := flag.NewFlagSet("create-account", flag.ExitOnError)
	ts := fs.Int64("ts", 0, "logical timestamp")
	id := fs.String("id", "", "account id")
	fs.Parse(args)

	var out map[string]any
	if err := c.post("/api/v1/accounts", map[string]any{"ts": *ts, "account_id": *id}, &out); err != nil {
		return err
	}
	fmt.Println(okStyle.Render("account created: ") + *id)
	return nil
}

func cmdDeposit(c *client, args []string) error {
	fs := flag.NewFlagSet("deposit", flag.ExitOnError)
	ts := fs.Int64("ts", 0, "logical timestamp")
	id := fs.String("id", "", "account id")
	amount := fs.Int64("amount", 0, "amount in minor units")
	fs.Parse(args)

	var out map[string]any
	if err := c.post("/api/v1/accounts/"+*id+"/deposit", map[string]any{"ts": *ts, "amount": *amount}, &out); err != nil {
		return err
	}
	fmt.Println(okStyle.Render("balance: ") + fmt.Sprint(out["balance"]))
	return nil
}

func cmdTransfer(c *client, args []string) error {
	fs := flag.NewFlagSet("transfer", flag.ExitOnError)
	ts := fs.Int64("ts", 0, "logical timestamp")
	src := fs.String("src", "", "source account id")
	dst := fs.String("dst", "", "target account id")
	amount := fs.Int64("amount", 0, "amount in minor units")
	fs.Parse(args)

	var out map[string]any
	body := map[string]any{"ts": *ts, "source": *src, "target": *dst, "amount": *amount}
	if err := c.post("/api/v1/transfer", body, &out); err != nil {
		return err
	}
	fmt.Println(okStyle.Render("source balance: ") + fmt.Sprint(out["balance"]))
	return nil
}

func cmdBalance(c *client, args []string) error {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	ts := fs.Int64("ts", 0, "logical timestamp")
	id := fs.String("id", "", "account id")
	at := fs.Int64("at", 0, "historical query time (defaults to ts)")
	fs.Parse(args)

	queryAt := *ts
	atSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "at" {
			atSet = true
		}
	})
	if atSet {
		queryAt = *at
	}

	var out map[string]any
	path := fmt.Sprintf("/api/v1/accounts/%s/balance?ts=%d&t_at=%d", *id, *ts, queryAt)
	if err := c.get(path, &out); err != nil {
		return err
	}
	fmt.Println(fieldStyle.Render(*id+": ") + fmt.Sprint(out["balance"]))
	return nil
}

func cmdSchedule(c *client, args []string) error {
	fs := flag.NewFlagSet("schedule", flag.ExitOnError)
	ts := fs.Int64("ts", 0, "logical timestamp")
	id := fs.String("id", "", "account id")
	amount := fs.Int64("amount", 0, "amount in minor units")
	delay := fs.Int64("delay", 0, "delay before due, in logical time units")
	fs.Parse(args)

	var out map[string]any
	body := map[string]any{"ts": *ts, "amount": *amount, "delay": *delay}
	if err := c.post("/api/v1/accounts/"+*id+"/schedule", body, &out); err != nil {
		return err
	}
	fmt.Println(okStyle.Render("payment scheduled: ") + fmt.Sprint(out["payment_id"]))
	return nil
}

func cmdCancel(c *client, args []string) error {
	fs := flag.NewFlagSet("cancel", flag.ExitOnError)
	ts := fs.Int64("ts", 0, "logical timestamp")
	id := fs.String("id", "", "account id")
	payment := fs.String("payment", "", "payment id")
	fs.Parse(args)

	var out map[string]any
	body := map[string]any{"ts": *ts, "account_id": *id}
	if err := c.post("/api/v1/payments/"+*payment+"/cancel", body, &out); err != nil {
		return err
	}
	fmt.Println(okStyle.Render("payment canceled: ") + *payment)
	return nil
}

func cmdMerge(c *client, args []string) error {
	fs := flag.NewFlagSet("merge", flag.ExitOnError)
	ts := fs.Int64("ts", 0, "logical timestamp")
	parent := fs.String("parent", "", "surviving account id")
	child := fs.String("child", "", "account id being absorbed")
	fs.Parse(args)

	var out map[string]any
	body := map[string]any{"ts": *ts, "parent": *parent, "child": *child}
	if err := c.post("/api/v1/merge", body, &out); err != nil {
		return err
	}
	fmt.Println(okStyle.Render("merged: ") + *child + " -> " + *parent)
	return nil
}

func cmdTopSpenders(c *client, args []string) error {
	fs := flag.NewFlagSet("top-spenders", flag.ExitOnError)
	ts := fs.Int64("ts", 0, "logical timestamp")
	n := fs.Int("n", 10, "number of spenders to return")
	fs.Parse(args)

	var out map[string]any
	path := fmt.Sprintf("/api/v1/top-spenders?ts=%d&n=%d", *ts, *n)
	if err := c.get(path, &out); err != nil {
		return err
	}
	fmt.Println(titleStyle.Render("top spenders:"))
	if spenders, ok := out["spenders"].([]any); ok {
		for _, s := range spenders {
			fmt.Println("  " + fmt.Sprint(s))
		}
	}
	return nil
}
