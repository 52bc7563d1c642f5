// agentslack CLI - command line client for the agentslack tool API
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/eldtechnologies/agentslack/clients/go/agentslack"
)

func main() {
	baseURL := pflag.String("url", "", "server URL (default $AGENTSLACK_URL or http://localhost:8080)")
	agent := pflag.String("agent", "", "agent name sent as your_name (default $AGENTSLACK_AGENT)")
	adminKey := pflag.String("admin-key", "", "admin key for registration (default $AGENTSLACK_ADMIN_KEY)")
	pflag.Usage = usage
	pflag.Parse()

	args := pflag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}

	client := agentslack.NewClient(*baseURL)
	if *agent != "" {
		client.Agent = *agent
	}
	if *adminKey != "" {
		client.AdminKey = *adminKey
	}

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	switch cmd := args[0]; cmd {
	case "health":
		resp, err := client.Health(ctx)
		exitOnError(err)
		printJSON(resp)

	case "tools":
		tools, err := client.ListTools(ctx)
		exitOnError(err)
		for _, t := range tools {
			fmt.Printf("  %-20s %s\n", t.Name, t.Description)
		}

	case "register-world":
		need(args, 2, "register-world <name>")
		resp, err := client.RegisterWorld(ctx, args[1])
		exitOnError(err)
		fmt.Printf("World %s started at %s\n", resp.Name, resp.StartEpoch)

	case "register-agent":
		need(args, 3, "register-agent <name> <world>")
		resp, err := client.RegisterAgent(ctx, args[1], args[2])
		exitOnError(err)
		fmt.Printf("Registered %s in %s as %s\n", resp.Name, resp.World, resp.UserID)

	case "dm":
		need(args, 3, "dm <recipient> <message>")
		resp, err := client.SendDM(ctx, args[1], args[2])
		exitOnError(err)
		fmt.Printf("Sent: %s\n", resp.Timestamp)

	case "post":
		need(args, 3, "post <channel> <message>")
		resp, err := client.SendBroadcast(ctx, args[1], args[2])
		exitOnError(err)
		fmt.Printf("Posted: %s\n", resp.Timestamp)

	case "read":
		need(args, 2, "read <channel>")
		msgs, err := client.ReadChannel(ctx, args[1])
		exitOnError(err)
		printMessages(msgs)

	case "read-dm":
		need(args, 2, "read-dm <sender>")
		msgs, err := client.ReadDM(ctx, args[1])
		exitOnError(err)
		printMessages(msgs)

	case "check":
		resp, err := client.CheckNewMessages(ctx)
		exitOnError(err)
		for _, b := range resp.Batches {
			fmt.Printf("#%s (%s)\n", b.ChannelName, b.ChannelID)
			printMessages(b.Messages)
		}
		for _, f := range resp.Failures {
			fmt.Fprintf(os.Stderr, "could not read %s: %s\n", f.ChannelID, f.Error)
		}

	case "channels":
		chans, err := client.ListChannels(ctx)
		exitOnError(err)
		for _, ch := range chans {
			fmt.Printf("  %s  %s\n", ch.ID, ch.Name)
		}

	case "create":
		need(args, 2, "create <channel>")
		ch, err := client.CreateChannel(ctx, args[1])
		exitOnError(err)
		fmt.Printf("Channel %s: %s\n", ch.Name, ch.ID)

	case "help":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`agentslack CLI

Usage: agentslack [flags] <command> [args]

Commands:
  register-world <name>          Create a world (admin)
  register-agent <name> <world>  Register an agent (admin)
  dm <recipient> <message>       Send a direct message
  post <channel> <message>       Post to a channel
  read <channel>                 Read new channel messages
  read-dm <sender>               Read new direct messages
  check                          Collect new messages everywhere
  channels                       List channels
  create <channel>               Create or join a channel
  tools                          List tools
  health                         Check server health

Flags:`)
	pflag.PrintDefaults()
}

func need(args []string, n int, usage string) {
	if len(args) < n {
		fmt.Fprintln(os.Stderr, "Usage: agentslack", usage)
		os.Exit(1)
	}
}

func printMessages(msgs []agentslack.Message) {
	for _, m := range msgs {
		fmt.Printf("[%s] %s: %s\n", m.Timestamp, m.Author, m.Message)
	}
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
