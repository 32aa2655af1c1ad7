package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/xid"
)

var (
	queueURL         string
	region           string
	numberOfMessages int
	concurrency      int
	eventCount       int
	maxSeats         int
	sendTimeout      time.Duration
	currentPattern   WorkloadPattern
)

func init() {
	queueURL = getEnv("SQS_QUEUE_URL", "")
	if queueURL == "" {
		fmt.Fprintf(os.Stderr, "ERROR: SQS_QUEUE_URL environment variable is required\n")
		os.Exit(1)
	}

	region = getEnv("AWS_REGION", "us-east-1")
	numberOfMessages = getEnvInt("LOAD_TEST_MESSAGES", 1000)
	concurrency = getEnvInt("LOAD_TEST_CONCURRENCY", 10)
	eventCount = getEnvInt("LOAD_TEST_EVENTS", 5)
	maxSeats = getEnvInt("LOAD_TEST_MAX_SEATS", 4)
	sendTimeout = time.Duration(getEnvInt("LOAD_TEST_TIMEOUT_SECONDS", 30)) * time.Second

	patternStr := getEnv("LOAD_TEST_PATTERN", "steady")
	currentPattern = WorkloadPattern(patternStr)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

type WorkloadPattern string

const (
	PatternSteady WorkloadPattern = "steady"
	PatternBurst  WorkloadPattern = "burst"
)

type MessageData struct {
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
	Seats   int    `json:"seats"`
}

type Message struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Data     MessageData       `json:"data"`
	Metadata map[string]string `json:"metadata"`
}

type Result struct {
	Success  bool
	Duration time.Duration
	Index    int
	Error    string
	EventID  string
	Seats    int
}

type model struct {
	spinner        spinner.Model
	progress       progress.Model
	totalMessages  int
	sentMessages   int
	successfulMsgs int
	failedMsgs     int
	seatsRequested int
	perEvent       map[string]int
	recentLogs     []logEntry
	errors         []string
	latencies      []time.Duration
	minLatency     time.Duration
	maxLatency     time.Duration
	avgLatency     time.Duration
	throughput     float64
	startTime      time.Time
	currentTime    time.Time
	isComplete     bool
	width          int
	height         int
	pattern        WorkloadPattern
}

type logEntry struct {
	timestamp time.Time
	message   string
	success   bool
}

type tickMsg time.Time
type resultMsg Result
type completeMsg struct{}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			MarginBottom(1)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	valueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("111"))

	configValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("117")).
				Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2).
			MarginBottom(1)
)

func initialModel() model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		spinner:       s,
		progress:      progress.New(progress.WithDefaultGradient()),
		totalMessages: numberOfMessages,
		perEvent:      make(map[string]int),
		recentLogs:    make([]logEntry, 0, 20),
		errors:        make([]string, 0),
		latencies:     make([]time.Duration, 0),
		startTime:     time.Now(),
		pattern:       currentPattern,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 4
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tickMsg:
		m.currentTime = time.Time(msg)
		if !m.isComplete {
			return m, tickCmd()
		}
		return m, nil

	case resultMsg:
		m.sentMessages++
		m.latencies = append(m.latencies, msg.Duration)

		if len(m.latencies) == 1 {
			m.minLatency = msg.Duration
			m.maxLatency = msg.Duration
		} else {
			if msg.Duration < m.minLatency {
				m.minLatency = msg.Duration
			}
			if msg.Duration > m.maxLatency {
				m.maxLatency = msg.Duration
			}
		}

		var total time.Duration
		for _, d := range m.latencies {
			total += d
		}
		m.avgLatency = total / time.Duration(len(m.latencies))

		elapsed := time.Since(m.startTime).Seconds()
		if elapsed > 0 {
			m.throughput = float64(m.successfulMsgs) / elapsed
		}

		if msg.Success {
			m.successfulMsgs++
			m.seatsRequested += msg.Seats
			m.perEvent[msg.EventID]++

			logMsg := fmt.Sprintf("Reservation %d sent: %s x%d (%v)", msg.Index, msg.EventID, msg.Seats, msg.Duration)
			m.recentLogs = append([]logEntry{{
				timestamp: time.Now(),
				message:   logMsg,
				success:   true,
			}}, m.recentLogs...)
		} else {
			m.failedMsgs++
			logMsg := fmt.Sprintf("Reservation %d failed: %s", msg.Index, msg.Error)
			m.recentLogs = append([]logEntry{{
				timestamp: time.Now(),
				message:   logMsg,
				success:   false,
			}}, m.recentLogs...)

			m.errors = append([]string{msg.Error}, m.errors...)
			if len(m.errors) > 5 {
				m.errors = m.errors[:5]
			}
		}

		if len(m.recentLogs) > 15 {
			m.recentLogs = m.recentLogs[:15]
		}

		return m, nil

	case completeMsg:
		m.isComplete = true
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	default:
		return m, nil
	}

	return m, nil
}

func (m model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	title := titleStyle.Render("Ticket Reservation Load Generator")
	b.WriteString(title + "\n")

	progressPercent := float64(m.sentMessages) / float64(m.totalMessages)
	progressBar := m.progress.ViewAs(progressPercent)
	progressText := fmt.Sprintf("Progress: %d/%d reservations (%.1f%%)",
		m.sentMessages, m.totalMessages, progressPercent*100)

	if !m.isComplete {
		progressText = m.spinner.View() + " " + progressText
	} else {
		progressText = "✓ " + progressText
	}

	b.WriteString(progressText + "\n")
	b.WriteString(progressBar + "\n\n")

	b.WriteString(m.renderConfigPanel() + "\n")

	columns := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderMetricsPanel(),
		m.renderEventPanel(),
	)
	b.WriteString(columns + "\n")

	b.WriteString(m.renderLogPanel() + "\n")

	if len(m.errors) > 0 {
		b.WriteString(m.renderErrorPanel() + "\n")
	}

	if m.isComplete {
		b.WriteString(successStyle.Render("\n✓ Test Complete! Press 'q' to quit"))
	} else {
		b.WriteString(labelStyle.Render("\nPress 'q' to quit"))
	}

	return b.String()
}

func (m model) renderConfigPanel() string {
	displayQueueURL := queueURL
	if len(displayQueueURL) > 60 {
		displayQueueURL = "..." + displayQueueURL[len(displayQueueURL)-57:]
	}

	content := fmt.Sprintf(
		"%s\n"+
			"  %s %s\n"+
			"  %s %s\n"+
			"  %s %s\n"+
			"  %s %s\n"+
			"  %s %s",
		labelStyle.Render("Configuration:"),
		labelStyle.Render("Queue URL:"),
		configValueStyle.Render(displayQueueURL),
		labelStyle.Render("Region:"),
		configValueStyle.Render(region),
		labelStyle.Render("Senders:"),
		configValueStyle.Render(fmt.Sprintf("%d", concurrency)),
		labelStyle.Render("Events:"),
		configValueStyle.Render(fmt.Sprintf("%d", eventCount)),
		labelStyle.Render("Pattern:"),
		configValueStyle.Render(string(m.pattern)),
	)

	return boxStyle.Width(84).Render(content)
}

func (m model) renderMetricsPanel() string {
	elapsed := m.currentTime.Sub(m.startTime)
	if elapsed == 0 {
		elapsed = time.Since(m.startTime)
	}

	var minStr, maxStr, avgStr string
	if len(m.latencies) > 0 {
		minStr = m.minLatency.Round(time.Millisecond).String()
		maxStr = m.maxLatency.Round(time.Millisecond).String()
		avgStr = m.avgLatency.Round(time.Millisecond).String()
	} else {
		minStr = "N/A"
		maxStr = "N/A"
		avgStr = "N/A"
	}

	content := fmt.Sprintf(
		"%s %s\n"+
			"%s %s\n"+
			"%s %s\n"+
			"%s %s\n\n"+
			"%s\n"+
			"  %s %s / %s %s / %s %s\n\n"+
			"%s %s\n"+
			"%s %s msg/s",
		labelStyle.Render("Total Sent:"),
		valueStyle.Render(fmt.Sprintf("%d", m.sentMessages)),
		labelStyle.Render("Successful:"),
		successStyle.Render(fmt.Sprintf("%d", m.successfulMsgs)),
		labelStyle.Render("Failed:"),
		errorStyle.Render(fmt.Sprintf("%d", m.failedMsgs)),
		labelStyle.Render("Seats Requested:"),
		valueStyle.Render(fmt.Sprintf("%d", m.seatsRequested)),
		labelStyle.Render("Latency:"),
		labelStyle.Render("min"),
		valueStyle.Render(minStr),
		labelStyle.Render("avg"),
		valueStyle.Render(avgStr),
		labelStyle.Render("max"),
		valueStyle.Render(maxStr),
		labelStyle.Render("Elapsed:"),
		valueStyle.Render(elapsed.Round(time.Second).String()),
		labelStyle.Render("Throughput:"),
		valueStyle.Render(fmt.Sprintf("%.2f", m.throughput)),
	)

	return boxStyle.Width(42).Render(content)
}

func (m model) renderEventPanel() string {
	var content strings.Builder
	content.WriteString(labelStyle.Render("Reservations per event:") + "\n\n")

	if len(m.perEvent) == 0 {
		content.WriteString(labelStyle.Render("  No data yet..."))
	} else {
		for i := 0; i < eventCount; i++ {
			eventID := eventIDFor(i)
			content.WriteString(fmt.Sprintf("  %s %s\n",
				labelStyle.Render(eventID+":"),
				valueStyle.Render(fmt.Sprintf("%d", m.perEvent[eventID])),
			))
		}
	}

	return boxStyle.Width(38).Render(content.String())
}

func (m model) renderLogPanel() string {
	var logs strings.Builder
	logs.WriteString(labelStyle.Render("Recent Activity:") + "\n\n")

	if len(m.recentLogs) == 0 {
		logs.WriteString(labelStyle.Render("  No activity yet..."))
	} else {
		for i, log := range m.recentLogs {
			if i >= 10 {
				break
			}

			var style lipgloss.Style
			var icon string
			if log.success {
				style = successStyle
				icon = "✓"
			} else {
				style = errorStyle
				icon = "✗"
			}

			timestamp := log.timestamp.Format("15:04:05.000")
			logs.WriteString(fmt.Sprintf("  %s %s %s\n",
				labelStyle.Render(timestamp),
				style.Render(icon),
				log.message,
			))
		}
	}

	return boxStyle.Width(84).Render(logs.String())
}

func (m model) renderErrorPanel() string {
	var errorList strings.Builder
	errorList.WriteString(errorStyle.Render("Recent Errors:") + "\n\n")

	for i, err := range m.errors {
		if i >= 5 {
			break
		}
		errorList.WriteString(fmt.Sprintf("  %s %s\n", errorStyle.Render("•"), err))
	}

	return boxStyle.Width(84).Render(errorList.String())
}

func eventIDFor(i int) string {
	return fmt.Sprintf("evt-%03d", i+1)
}

func getMessageDelay(pattern WorkloadPattern, index int, total int, rng *rand.Rand) time.Duration {
	switch pattern {
	case PatternBurst:
		progress := float64(index) / float64(total)
		if progress < 0.3 || (progress > 0.5 && progress < 0.6) || (progress > 0.8 && progress < 0.9) {
			return time.Duration(rng.Intn(5)) * time.Millisecond
		}
		return time.Duration(50+rng.Intn(100)) * time.Millisecond

	default:
		return time.Duration(10+rng.Intn(5)) * time.Millisecond
	}
}

func createReservationMessage(rng *rand.Rand, index int) Message {
	guid := xid.New()

	return Message{
		ID:   fmt.Sprintf("reservation-%06d-%s", index, guid.String()),
		Type: "reservation",
		Data: MessageData{
			EventID: eventIDFor(rng.Intn(eventCount)),
			UserID:  fmt.Sprintf("user%d", 1000+rng.Intn(9000)),
			Seats:   1 + rng.Intn(maxSeats),
		},
		Metadata: map[string]string{
			"source": "loadtester",
		},
	}
}

func sendMessage(ctx context.Context, client *sqs.Client, rng *rand.Rand, index int) Result {
	msg := createReservationMessage(rng, index)

	messageBody, err := json.Marshal(msg)
	if err != nil {
		return Result{
			Success: false,
			Index:   index,
			Error:   fmt.Sprintf("JSON marshal error: %v", err),
			EventID: msg.Data.EventID,
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	startTime := time.Now()
	messageBodyStr := string(messageBody)
	_, err = client.SendMessage(sendCtx, &sqs.SendMessageInput{
		QueueUrl:    &queueURL,
		MessageBody: &messageBodyStr,
	})
	duration := time.Since(startTime)

	if err != nil {
		return Result{
			Success:  false,
			Duration: duration,
			Index:    index,
			Error:    err.Error(),
			EventID:  msg.Data.EventID,
		}
	}

	return Result{
		Success:  true,
		Duration: duration,
		Index:    index,
		EventID:  msg.Data.EventID,
		Seats:    msg.Data.Seats,
	}
}

func main() {
	// signal handling graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// aws
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Unable to load SDK config: %v\n", err)
		os.Exit(1)
	}

	client := sqs.NewFromConfig(cfg)

	p := tea.NewProgram(initialModel(), tea.WithAltScreen())

	resultChan := make(chan Result, numberOfMessages)

	go func() {
		jobs := make(chan int, numberOfMessages)
		results := make(chan Result, numberOfMessages)

		var wg sync.WaitGroup
		for w := 0; w < concurrency; w++ {
			wg.Add(1)
			go func(workerID int) {
				defer wg.Done()
				rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

				for {
					select {
					case index, ok := <-jobs:
						if !ok {
							return
						}

						delay := getMessageDelay(currentPattern, index, numberOfMessages, rng)
						time.Sleep(delay)

						results <- sendMessage(ctx, client, rng, index)
					case <-ctx.Done():
						return
					}
				}
			}(w)
		}

		go func() {
			for i := 1; i <= numberOfMessages; i++ {
				select {
				case jobs <- i:
				case <-ctx.Done():
					close(jobs)
					return
				}
			}
			close(jobs)
		}()

		go func() {
			wg.Wait()
			close(results)
		}()

		for result := range results {
			resultChan <- result
		}
		close(resultChan)
	}()

	go func() {
		for result := range resultChan {
			p.Send(resultMsg(result))
		}
		p.Send(completeMsg{})
	}()

	go func() {
		<-sigChan
		cancel()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}
