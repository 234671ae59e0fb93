// trustmesh is the command-line front end for the TrustMesh gateway. It is a
// thin client: every command issues one engine operation (or read) over the
// JSON API and renders the result.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/trustmesh/backend/pkg/sdk"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	gateway := os.Getenv("TRUSTMESH_GATEWAY_URL")
	if gateway == "" {
		gateway = "http://localhost:8080"
	}
	agentID := os.Getenv("TRUSTMESH_AGENT_ID")
	apiKey := os.Getenv("TRUSTMESH_API_KEY")

	client := sdk.NewClient(sdk.Config{
		GatewayURL: gateway,
		AgentID:    agentID,
		APIKey:     apiKey,
	})
	ctx := context.Background()

	switch os.Args[1] {
	case "register":
		cmdRegister(ctx, client)
	case "fund":
		cmdFund(ctx, client, agentID)
	case "stake":
		cmdStake(ctx, client)
	case "unstake":
		cmdUnstake(ctx, client)
	case "deal":
		cmdDeal(ctx, client)
	case "agent":
		cmdAgent(ctx, client, agentID)
	case "reputation":
		cmdReputation(ctx, client, agentID)
	case "leaderboard":
		cmdLeaderboard(ctx, client)
	case "stats":
		cmdStats(ctx, client)
	case "watch":
		cmdWatch(gateway, agentID)
	case "version":
		fmt.Printf("trustmesh v%s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`TrustMesh CLI v` + version + `

Usage: trustmesh <command> [flags]

Commands:
  register     Register this agent (--name <display name>)
  fund         Credit free vault balance (--amount N [--to identity], dev only)
  stake        Lock collateral (--amount N)
  unstake      request | withdraw --amount N
  deal         create | confirm | dispute | cancel | show
  agent        Show an agent profile (--id identity, default self)
  reputation   Show a reputation score (--id identity, default self)
  leaderboard  Agents ranked by reputation
  stats        Engine-wide summary
  watch        Tail the live event stream
  version      Print version
  help         Show this help

Environment:
  TRUSTMESH_GATEWAY_URL   Gateway URL (default: http://localhost:8080)
  TRUSTMESH_AGENT_ID      This agent's verified identity
  TRUSTMESH_API_KEY       API key, if the gateway requires one

Examples:
  trustmesh register --name "Alice"
  trustmesh stake --amount 10
  trustmesh deal create --counterparty agent-b21c --amount 50 --desc "translate corpus"
  trustmesh deal confirm --id 1
  trustmesh unstake request && trustmesh unstake withdraw --amount 10`)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// flagValue scans args for "--name value" (or its alias) and returns the value.
func flagValue(args []string, name, alias string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == name || (alias != "" && args[i] == alias) {
			return args[i+1]
		}
	}
	return ""
}

func amountFlag(args []string) uint64 {
	raw := flagValue(args, "--amount", "-a")
	if raw == "" {
		fail(fmt.Errorf("--amount is required"))
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		fail(fmt.Errorf("invalid --amount %q", raw))
	}
	return n
}

func idFlag(args []string) uint64 {
	raw := flagValue(args, "--id", "-i")
	if raw == "" {
		fail(fmt.Errorf("--id is required"))
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		fail(fmt.Errorf("invalid --id %q", raw))
	}
	return n
}

func printAgent(a *sdk.Agent) {
	fmt.Printf("%s (%s)\n", a.Name, a.Identity)
	fmt.Printf("  reputation:      %d\n", a.Reputation)
	fmt.Printf("  staked:          %d\n", a.Staked)
	fmt.Printf("  deals completed: %d\n", a.DealsCompleted)
	fmt.Printf("  deals failed:    %d\n", a.DealsFailed)
	fmt.Printf("  total volume:    %d\n", a.TotalVolume)
	if !a.UnstakeRequestedAt.IsZero() {
		fmt.Printf("  unstake requested: %s\n", a.UnstakeRequestedAt.Format(time.RFC3339))
	}
}

func printDeal(d *sdk.Deal) {
	fmt.Printf("deal #%d [%s]\n", d.ID, d.StatusString())
	fmt.Printf("  creator:      %s (confirmed: %v)\n", d.Creator, d.CreatorConfirmed)
	fmt.Printf("  counterparty: %s (confirmed: %v)\n", d.Counterparty, d.CounterpartyConfirmed)
	fmt.Printf("  amount:       %d\n", d.Amount)
	if d.Description != "" {
		fmt.Printf("  description:  %s\n", d.Description)
	}
	fmt.Printf("  expires:      %s\n", d.ExpiresAt.Format(time.RFC3339))
}

func cmdRegister(ctx context.Context, client *sdk.Client) {
	name := flagValue(os.Args[2:], "--name", "-n")
	if name == "" {
		fail(fmt.Errorf("--name is required"))
	}
	a, err := client.Register(ctx, name)
	if err != nil {
		fail(err)
	}
	fmt.Println("registered")
	printAgent(a)
}

func cmdFund(ctx context.Context, client *sdk.Client, self string) {
	args := os.Args[2:]
	amount := amountFlag(args)
	to := flagValue(args, "--to", "")
	if to == "" {
		to = self
	}
	if err := client.Fund(ctx, to, amount); err != nil {
		fail(err)
	}
	fmt.Printf("credited %d to %s\n", amount, to)
}

func cmdStake(ctx context.Context, client *sdk.Client) {
	a, err := client.Stake(ctx, amountFlag(os.Args[2:]))
	if err != nil {
		fail(err)
	}
	fmt.Printf("staked, collateral now %d\n", a.Staked)
}

func cmdUnstake(ctx context.Context, client *sdk.Client) {
	if len(os.Args) < 3 {
		fail(fmt.Errorf("usage: trustmesh unstake request | withdraw --amount N"))
	}
	switch os.Args[2] {
	case "request":
		a, err := client.RequestUnstake(ctx)
		if err != nil {
			fail(err)
		}
		fmt.Printf("unstake requested at %s\n", a.UnstakeRequestedAt.Format(time.RFC3339))
	case "withdraw":
		a, err := client.Unstake(ctx, amountFlag(os.Args[3:]))
		if err != nil {
			fail(err)
		}
		fmt.Printf("withdrawn, collateral now %d\n", a.Staked)
	default:
		fail(fmt.Errorf("unknown unstake subcommand %q", os.Args[2]))
	}
}

func cmdDeal(ctx context.Context, client *sdk.Client) {
	if len(os.Args) < 3 {
		fail(fmt.Errorf("usage: trustmesh deal create|confirm|dispute|cancel|show"))
	}
	args := os.Args[3:]
	switch os.Args[2] {
	case "create":
		counterparty := flagValue(args, "--counterparty", "-c")
		if counterparty == "" {
			fail(fmt.Errorf("--counterparty is required"))
		}
		desc := flagValue(args, "--desc", "-d")
		var expiry time.Duration
		if raw := flagValue(args, "--expiry", ""); raw != "" {
			parsed, err := time.ParseDuration(raw)
			if err != nil {
				fail(fmt.Errorf("invalid --expiry %q", raw))
			}
			expiry = parsed
		}
		d, err := client.CreateDeal(ctx, counterparty, amountFlag(args), desc, expiry)
		if err != nil {
			fail(err)
		}
		printDeal(d)
	case "confirm":
		d, err := client.ConfirmDeal(ctx, idFlag(args))
		if err != nil {
			fail(err)
		}
		printDeal(d)
	case "dispute":
		d, err := client.DisputeDeal(ctx, idFlag(args))
		if err != nil {
			fail(err)
		}
		printDeal(d)
	case "cancel":
		d, err := client.CancelExpiredDeal(ctx, idFlag(args))
		if err != nil {
			fail(err)
		}
		printDeal(d)
	case "show":
		d, err := client.Deal(ctx, idFlag(args))
		if err != nil {
			fail(err)
		}
		printDeal(d)
	default:
		fail(fmt.Errorf("unknown deal subcommand %q", os.Args[2]))
	}
}

func cmdAgent(ctx context.Context, client *sdk.Client, self string) {
	identity := flagValue(os.Args[2:], "--id", "-i")
	if identity == "" {
		identity = self
	}
	if identity == "" {
		fail(fmt.Errorf("--id or TRUSTMESH_AGENT_ID is required"))
	}
	a, err := client.Agent(ctx, identity)
	if err != nil {
		fail(err)
	}
	printAgent(a)
}

func cmdReputation(ctx context.Context, client *sdk.Client, self string) {
	identity := flagValue(os.Args[2:], "--id", "-i")
	if identity == "" {
		identity = self
	}
	if identity == "" {
		fail(fmt.Errorf("--id or TRUSTMESH_AGENT_ID is required"))
	}
	score, err := client.Reputation(ctx, identity)
	if err != nil {
		fail(err)
	}
	fmt.Printf("%s: %d\n", identity, score)
}

func cmdLeaderboard(ctx context.Context, client *sdk.Client) {
	board, err := client.Leaderboard(ctx)
	if err != nil {
		fail(err)
	}
	fmt.Printf("%-4s %-20s %-12s %7s %6s %9s %6s\n",
		"#", "NAME", "IDENTITY", "SCORE", "STAKE", "COMPLETED", "FAILED")
	for i, a := range board {
		fmt.Printf("%-4d %-20s %-12s %7d %6d %9d %6d\n",
			i+1, a.Name, a.Identity, a.Reputation, a.Staked, a.DealsCompleted, a.DealsFailed)
	}
}

func cmdStats(ctx context.Context, client *sdk.Client) {
	st, err := client.Stats(ctx)
	if err != nil {
		fail(err)
	}
	fmt.Printf("agents:     %d\n", st.Agents)
	fmt.Printf("deals:      %d\n", st.Deals)
	fmt.Printf("vault held: %d\n", st.VaultHeld)
	fmt.Printf("conserved:  %v\n", st.Conserved)
}

// cmdWatch tails the SSE stream and prints one line per event.
func cmdWatch(gateway, agentID string) {
	req, err := http.NewRequest("GET", gateway+"/api/events", nil)
	if err != nil {
		fail(err)
	}
	if agentID != "" {
		req.Header.Set("X-Agent-ID", agentID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fail(err)
	}
	defer resp.Body.Close()

	fmt.Println("watching events (Ctrl-C to stop)...")
	scanner := bufio.NewScanner(resp.Body)
	var eventType string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			fmt.Printf("%s  %s %s\n",
				time.Now().Format("15:04:05"), eventType, strings.TrimPrefix(line, "data: "))
		}
	}
	if err := scanner.Err(); err != nil {
		fail(err)
	}
}
