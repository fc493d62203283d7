// Command agenda-mcp serves the agenda over the Model Context Protocol.
//
// Usage:
//
//	./agenda-mcp          # Start MCP server (stdio)
//	./agenda-mcp --help   # Show help
//
// The database and timezone come from the same configuration as the bot
// (DATABASE_URL, SQLITE_PATH, LOCAL_TIMEZONE, AGENDA_CONFIG).
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/pathakanu/myAgenda/internal/config"
	"github.com/pathakanu/myAgenda/internal/database"
	"github.com/pathakanu/myAgenda/internal/mcpserver"
	"github.com/pathakanu/myAgenda/internal/store"
	"github.com/pathakanu/myAgenda/internal/timeparse"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--help", "-h":
			printHelp()
			return
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}

	st := store.New(db, store.WithLocation(cfg.LocalTimezone), store.WithResolver(timeparse.New()))
	s := mcpserver.New(st, os.Getenv("AGENDA_USER"))

	if err := server.ServeStdio(s.MCPServer()); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println(`Agenda MCP Server - tasks and reminders via MCP protocol

USAGE:
    agenda-mcp          Start MCP server (communicates via stdio)
    agenda-mcp --help   Show this help

ENVIRONMENT:
    AGENDA_USER     User id tools act on by default (default: cli:local)
    DATABASE_URL    PostgreSQL DSN; SQLite is used when empty
    SQLITE_PATH     SQLite file (default: agenda.db)
    LOCAL_TIMEZONE  IANA timezone for times (default: Local)

TOOLS:
    add_task             Add a task for today (title, priority, notes)
    list_tasks           List pending, completed or all tasks
    mark_done            Mark pending tasks done by position, or "all"
    add_reminder         Schedule a reminder (title, when)
    list_reminders       List scheduled reminders
    delete_reminder      Delete a reminder by position, text or "all"
    reschedule_reminder  Move a reminder to a new time
    stats                Task totals and today's mood`)
}
