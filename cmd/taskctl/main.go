package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	apiclient "github.com/splax/tasktracker/pkg/api/client"
)

type cliConfig struct {
	APIBaseURL  string `json:"api_base_url"`
	AccessToken string `json:"access_token"`
}

const defaultAPIBase = "http://localhost:8080"

var buildVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "register":
		err = commandRegister(args)
	case "login":
		err = commandLogin(args)
	case "whoami":
		err = commandWhoami(args)
	case "category":
		err = commandCategory(args)
	case "task":
		err = commandTask(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func commandRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	first := fs.String("first", "", "First name")
	last := fs.String("last", "", "Last name")
	apiBase := fs.String("api", "", "API base URL (default "+defaultAPIBase+")")
	fs.Parse(args)

	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}
	secret, err := readSecret(*password)
	if err != nil {
		return err
	}
	cfg, client, err := clientFor(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	resp, err := client.Register(ctx, apiclient.RegisterInput{FirstName: *first, LastName: *last, Email: *email, Password: secret})
	if err != nil {
		return err
	}
	cfg.AccessToken = resp.Token
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("registered, token valid until %s\n", resp.ExpiresAt.Format(time.RFC3339))
	return nil
}

func commandLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default "+defaultAPIBase+")")
	fs.Parse(args)

	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}
	secret, err := readSecret(*password)
	if err != nil {
		return err
	}
	cfg, client, err := clientFor(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	resp, err := client.Login(ctx, *email, secret)
	if err != nil {
		return err
	}
	cfg.AccessToken = resp.Token
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Println("login successful")
	return nil
}

func commandWhoami(args []string) error {
	client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	me, err := client.Me(ctx, token)
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%s %s\t%s\n", me.Email, me.FirstName, me.LastName, me.Role)
	return nil
}

func commandCategory(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: taskctl category [list|create|delete]")
	}
	client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch args[0] {
	case "list":
		categories, err := client.ListCategories(ctx, token)
		if err != nil {
			return err
		}
		for _, c := range categories {
			fmt.Printf("%d\t%s\t%s\n", c.ID, c.Name, c.Description)
		}
		return nil
	case "create":
		fs := flag.NewFlagSet("category create", flag.ExitOnError)
		name := fs.String("name", "", "Category name")
		desc := fs.String("description", "", "Optional description")
		fs.Parse(args[1:])
		if strings.TrimSpace(*name) == "" {
			return errors.New("--name is required")
		}
		created, err := client.CreateCategory(ctx, token, apiclient.CategoryInput{Name: *name, Description: *desc})
		if err != nil {
			return err
		}
		fmt.Printf("category created: %d (%s)\n", created.ID, created.Name)
		return nil
	case "delete":
		fs := flag.NewFlagSet("category delete", flag.ExitOnError)
		id := fs.Int64("id", 0, "Category identifier")
		fs.Parse(args[1:])
		if *id <= 0 {
			return errors.New("--id is required")
		}
		if err := client.DeleteCategory(ctx, token, *id); err != nil {
			return err
		}
		fmt.Println("category deleted")
		return nil
	default:
		return fmt.Errorf("unknown category command: %s", args[0])
	}
}

func commandTask(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: taskctl task [list|page|filter|create|done|delete]")
	}
	switch args[0] {
	case "list":
		return taskList(args[1:])
	case "page":
		return taskPage(args[1:])
	case "filter":
		return taskFilter(args[1:])
	case "create":
		return taskCreate(args[1:])
	case "done":
		return taskDone(args[1:])
	case "delete":
		return taskDelete(args[1:])
	default:
		return fmt.Errorf("unknown task command: %s", args[0])
	}
}

func taskList(args []string) error {
	fs := flag.NewFlagSet("task list", flag.ExitOnError)
	status := fs.String("status", "", "Only tasks with this status (TODO|IN_PROGRESS|DONE)")
	fs.Parse(args)

	client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	tasks, err := client.ListTasks(ctx, token, *status)
	if err != nil {
		return err
	}
	printTasks(tasks)
	return nil
}

func taskPage(args []string) error {
	fs := flag.NewFlagSet("task page", flag.ExitOnError)
	page := fs.Int("page", 0, "Zero-based page index")
	size := fs.Int("size", 10, "Page size")
	sort := fs.String("sort", "id,asc", "Sort as field,dir")
	fs.Parse(args)

	client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	result, err := client.PageTasks(ctx, token, *page, *size, *sort)
	if err != nil {
		return err
	}
	printTasks(result.Content)
	fmt.Printf("page %d/%d, %d tasks\n", result.Page+1, result.TotalPages, result.TotalElements)
	return nil
}

func taskFilter(args []string) error {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return errors.New(`usage: taskctl task filter 'status = "DONE" AND category_id = 3'`)
	}
	client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	tasks, err := client.FilterTasks(ctx, token, strings.Join(args, " "))
	if err != nil {
		return err
	}
	printTasks(tasks)
	return nil
}

func taskCreate(args []string) error {
	fs := flag.NewFlagSet("task create", flag.ExitOnError)
	title := fs.String("title", "", "Task title")
	desc := fs.String("description", "", "Optional description")
	status := fs.String("status", "TODO", "Initial status")
	categoryID := fs.Int64("category", 0, "Category identifier")
	fs.Parse(args)

	if strings.TrimSpace(*title) == "" {
		return errors.New("--title is required")
	}
	if *categoryID <= 0 {
		return errors.New("--category is required")
	}
	client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	created, err := client.CreateTask(ctx, token, apiclient.TaskInput{Title: *title, Description: *desc, Status: *status, CategoryID: *categoryID})
	if err != nil {
		return err
	}
	fmt.Printf("task created: %d (%s)\n", created.ID, created.Title)
	return nil
}

func taskDone(args []string) error {
	id, err := taskID(args)
	if err != nil {
		return err
	}
	client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	current, err := client.GetTask(ctx, token, id)
	if err != nil {
		return err
	}
	categories, err := client.ListCategories(ctx, token)
	if err != nil {
		return err
	}
	var categoryID int64
	for _, c := range categories {
		if c.Name == current.CategoryName {
			categoryID = c.ID
			break
		}
	}
	if categoryID == 0 {
		return fmt.Errorf("category %q of task %d not found", current.CategoryName, id)
	}
	updated, err := client.UpdateTask(ctx, token, id, apiclient.TaskInput{
		Title:       current.Title,
		Description: current.Description,
		Status:      "DONE",
		CategoryID:  categoryID,
	})
	if err != nil {
		return err
	}
	fmt.Printf("task %d is %s\n", updated.ID, updated.Status)
	return nil
}

func taskDelete(args []string) error {
	id, err := taskID(args)
	if err != nil {
		return err
	}
	client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := client.DeleteTask(ctx, token, id); err != nil {
		return err
	}
	fmt.Println("task deleted")
	return nil
}

func taskID(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, errors.New("task id is required")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", args[0])
	}
	return id, nil
}

func printTasks(tasks []apiclient.Task) {
	for _, t := range tasks {
		fmt.Printf("%d\t%s\t%s\t%s\t%s\n", t.ID, t.Status, t.CategoryName, t.Title, t.CreatedAt.Format(time.RFC3339))
	}
}

func readSecret(flagValue string) (string, error) {
	secret := strings.TrimSpace(flagValue)
	if secret != "" {
		return secret, nil
	}
	fmt.Print("Password: ")
	bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Print("\n")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(bytes), nil
}

func clientFor(apiBase string) (cliConfig, *apiclient.Client, error) {
	cfg, _ := loadConfig()
	if strings.TrimSpace(apiBase) != "" {
		cfg.APIBaseURL = apiBase
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return cliConfig{}, nil, err
	}
	return cfg, client, nil
}

func authedClient() (*apiclient.Client, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, "", errors.New("please login first using 'taskctl login'")
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return nil, "", err
	}
	return client, token, nil
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: defaultAPIBase}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBase
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func configPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "taskctl", "config.json"), nil
}

func printUsage() {
	fmt.Printf("taskctl %s\n\n", buildVersion)
	fmt.Print(`Usage:
	taskctl register --email user@example.com [--password secret] [--first Jane] [--last Doe] [--api http://localhost:8080]
	taskctl login --email user@example.com [--password secret] [--api http://localhost:8080]
	taskctl whoami
	taskctl category list
	taskctl category create --name <name> [--description text]
	taskctl category delete --id <category-id>
	taskctl task list [--status TODO|IN_PROGRESS|DONE]
	taskctl task page [--page N] [--size N] [--sort title,desc]
	taskctl task filter 'status = "DONE" AND category_id = 3'
	taskctl task create --title <title> --category <category-id> [--status TODO] [--description text]
	taskctl task done <task-id>
	taskctl task delete <task-id>
	taskctl version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
