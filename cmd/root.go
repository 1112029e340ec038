////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 GamerHive                                                 //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package cmd initializes the CLI and config parsers as well as the logger.
package cmd

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"github.com/Asadullah-Sadiq/GamerHive-sub000/catalog"
	"github.com/Asadullah-Sadiq/GamerHive-sub000/chat"
	"github.com/Asadullah-Sadiq/GamerHive-sub000/mediacache"
	"github.com/Asadullah-Sadiq/GamerHive-sub000/transport"
)

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen once
// to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gamerhive",
	Short: "Runs a terminal client for GamerHive chat",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		initLog(viper.GetUint("logLevel"), viper.GetString("log"))

		m := startConversation()
		defer m.Close()

		runInput(m, os.Stdin)
	},
}

// startConversation wires the transport, cache, and manager from the flags
// and joins the room.
func startConversation() *chat.Manager {
	cache, err := mediacache.New(viper.GetString("mediaDir"))
	if err != nil {
		jww.FATAL.Panicf("%+v", err)
	}

	identity := transport.Identity{
		UserID:   viper.GetString("user"),
		Username: viper.GetString("username"),
	}
	if identity.Username == "" {
		identity.Username = identity.UserID
	}

	printer := &timelinePrinter{selfID: identity.UserID,
		seen: make(map[string]struct{})}

	m, err := chat.NewManager(chat.Params{
		Channel:         transport.NewSocket(viper.GetString("server")),
		REST:            transport.NewRESTClient(viper.GetString("rest")),
		Identity:        identity,
		ConversationKey: viper.GetString("room"),
		Direct:          viper.GetBool("direct"),
		Cache:           cache,
		ChunkSize:       viper.GetInt("chunkSize"),
		OnBlocked: func(tempID string) {
			fmt.Println("Message blocked by the server.")
		},
		OnFailed: func(tempID string, err error) {
			fmt.Println("Message could not be sent.")
		},
		OnUpdate: func() { printer.update() },
	})
	if err != nil {
		jww.FATAL.Panicf("%+v", err)
	}
	printer.attach(m)

	if err = m.Start(); err != nil {
		jww.FATAL.Panicf("Could not join %q: %+v",
			viper.GetString("room"), err)
	}

	jww.INFO.Printf("Joined %q as %s", viper.GetString("room"),
		identity.UserID)

	return m
}

// runInput reads lines until EOF or /quit. Plain lines are sent as text;
// slash commands drive everything else.
func runInput(m *chat.Manager, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "/") {
			if _, err := m.SendText(line, nil); err != nil {
				jww.ERROR.Printf("Send failed: %+v", err)
			}
			continue
		}

		if quit := runCommand(m, line); quit {
			return
		}
	}
}

// runCommand dispatches one slash command and reports whether to quit.
func runCommand(m *chat.Manager, line string) bool {
	fields := strings.Fields(line)

	switch fields[0] {
	case "/quit":
		return true

	case "/file":
		if len(fields) < 2 {
			fmt.Println("Usage: /file <path>")
			return false
		}
		path := fields[1]
		if _, err := m.SendFile(path, mediaTypeFor(path)); err != nil {
			jww.ERROR.Printf("File send failed: %+v", err)
		}

	case "/react":
		if len(fields) < 3 {
			fmt.Println("Usage: /react <messageID> <emoji>")
			return false
		}
		if err := m.React(fields[1], fields[2]); err != nil {
			fmt.Println("Reactions must be a single emoji.")
		}

	case "/who":
		p := m.Presence()
		fmt.Printf("Online: %s\n", strings.Join(p.Online(), ", "))
		if typing := p.Typing(); len(typing) > 0 {
			fmt.Printf("Typing: %s\n", strings.Join(typing, ", "))
		}

	case "/list":
		printTimeline(m)

	default:
		fmt.Printf("Unknown command %q\n", fields[0])
	}

	return false
}

// timelinePrinter echoes newly arrived messages to the terminal as the
// timeline mutates. A message is printed once no matter how many merge steps
// touch it; both its provisional and authoritative IDs are remembered since
// reconciliation renames entries.
type timelinePrinter struct {
	selfID string

	mux  sync.Mutex
	m    *chat.Manager
	seen map[string]struct{}
}

func (tp *timelinePrinter) attach(m *chat.Manager) {
	tp.mux.Lock()
	tp.m = m
	tp.mux.Unlock()
}

func (tp *timelinePrinter) update() {
	tp.mux.Lock()
	defer tp.mux.Unlock()

	if tp.m == nil {
		return
	}

	for _, msg := range tp.m.Messages() {
		_, sawID := tp.seen[msg.ID]
		_, sawTemp := tp.seen[msg.TempID]
		if (msg.ID != "" && sawID) || (msg.TempID != "" && sawTemp) {
			continue
		}
		if msg.ID != "" {
			tp.seen[msg.ID] = struct{}{}
		}
		if msg.TempID != "" {
			tp.seen[msg.TempID] = struct{}{}
		}

		if msg.SenderID == tp.selfID {
			continue
		}
		body := msg.Content
		if msg.Attachment != nil {
			body = fmt.Sprintf("[%s] %s", msg.Type, msg.Attachment.FileURL)
		}
		fmt.Printf("%s %s: %s\n",
			msg.Timestamp.Format("15:04:05"), msg.SenderID, body)
	}
}

func printTimeline(m *chat.Manager) {
	for _, msg := range m.Messages() {
		body := msg.Content
		if msg.Attachment != nil {
			body = fmt.Sprintf("[%s] %s", msg.Type, msg.Attachment.FileURL)
		}
		if msg.Hidden {
			body = "(hidden by moderator)"
		}
		fmt.Printf("%s %s %s: %s [%s]\n",
			msg.Timestamp.Format("15:04:05"), msg.Key(), msg.SenderID,
			body, m.Indicator(msg))
	}
}

// mediaTypeFor maps a file extension onto a message type, defaulting to the
// generic file kind.
func mediaTypeFor(path string) catalog.MessageType {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "jpg", "jpeg", "png", "gif", "webp":
		return catalog.Image
	case "mp4", "mov", "webm":
		return catalog.Video
	case "m4a", "mp3", "ogg", "wav":
		return catalog.Audio
	default:
		return catalog.File
	}
}

func initLog(threshold uint, logPath string) {
	if logPath != "-" && logPath != "" {
		// Disable stdout output
		jww.SetStdoutOutput(io.Discard)
		// Use log file
		logOutput, err := os.OpenFile(logPath,
			os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			panic(err.Error())
		}
		jww.SetLogOutput(logOutput)
	}

	if threshold > 1 {
		jww.INFO.Printf("log level set to: TRACE")
		jww.SetStdoutThreshold(jww.LevelTrace)
		jww.SetLogThreshold(jww.LevelTrace)
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else if threshold == 1 {
		jww.INFO.Printf("log level set to: DEBUG")
		jww.SetStdoutThreshold(jww.LevelDebug)
		jww.SetLogThreshold(jww.LevelDebug)
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else {
		jww.INFO.Printf("log level set to: INFO")
		jww.SetStdoutThreshold(jww.LevelInfo)
		jww.SetLogThreshold(jww.LevelInfo)
	}
}

func initConfig() {
	cfg := viper.GetString("config")
	if cfg == "" {
		return
	}

	viper.SetConfigFile(cfg)
	if err := viper.ReadInConfig(); err != nil {
		jww.FATAL.Panicf("Could not read config file %s: %+v", cfg, err)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().UintP("logLevel", "v", 0,
		"Verbose mode for debugging")
	viper.BindPFlag("logLevel", rootCmd.PersistentFlags().Lookup("logLevel"))

	rootCmd.PersistentFlags().StringP("log", "l", "-",
		"Path to the log output path (- is stdout)")
	viper.BindPFlag("log", rootCmd.PersistentFlags().Lookup("log"))

	rootCmd.PersistentFlags().StringP("config", "c", "",
		"Path to a YAML config file; flags override its values")
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	rootCmd.PersistentFlags().StringP("server", "", "ws://localhost:3000/ws",
		"Websocket URL of the event channel")
	viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))

	rootCmd.PersistentFlags().StringP("rest", "", "http://localhost:3000",
		"Base URL of the REST fallback API")
	viper.BindPFlag("rest", rootCmd.PersistentFlags().Lookup("rest"))

	rootCmd.PersistentFlags().StringP("user", "u", "",
		"User ID to connect as")
	viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))

	rootCmd.PersistentFlags().StringP("username", "", "",
		"Display name, defaults to the user ID")
	viper.BindPFlag("username", rootCmd.PersistentFlags().Lookup("username"))

	rootCmd.PersistentFlags().StringP("room", "r", "",
		"Conversation to join: a community ID or a direct pair key")
	viper.BindPFlag("room", rootCmd.PersistentFlags().Lookup("room"))

	rootCmd.Flags().BoolP("direct", "d", false,
		"Treat the room as a two-party direct conversation")
	viper.BindPFlag("direct", rootCmd.Flags().Lookup("direct"))

	rootCmd.PersistentFlags().StringP("mediaDir", "m", ".gamerhive/media",
		"Directory for the local media cache")
	viper.BindPFlag("mediaDir", rootCmd.PersistentFlags().Lookup("mediaDir"))

	rootCmd.Flags().IntP("chunkSize", "", 0,
		"Attachment chunk size in bytes (0 uses the default)")
	viper.BindPFlag("chunkSize", rootCmd.Flags().Lookup("chunkSize"))
}
