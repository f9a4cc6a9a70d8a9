// Command check-integrations sends one test reminder through every
// configured delivery channel and round-trips a report through storage and
// the narrative model. Channels without credentials or targets are skipped.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Blackades/med-alert-hub-sub000/internal/azure"
	"github.com/Blackades/med-alert-hub-sub000/internal/notify"
	"github.com/Blackades/med-alert-hub-sub000/internal/pdf"
	"github.com/Blackades/med-alert-hub-sub000/pkg/model"
)

func main() {
	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	_ = godotenv.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	msg, err := testMessage()
	if err != nil {
		logger.Fatal("Failed to render test reminder", zap.Error(err))
	}

	failed := 0
	for _, check := range []struct {
		name string
		run  func(context.Context, notify.Message, *zap.Logger) (bool, error)
	}{
		{"SendGrid email", checkEmail},
		{"Twilio SMS", checkSMS},
		{"ESP32 HTTP device", checkDevice},
		{"MQTT broker", checkMQTT},
		{"Azure Blob Storage", checkBlobStorage},
		{"Azure OpenAI", checkOpenAI},
	} {
		logger.Info("=== Checking " + check.name + " ===")
		ran, err := check.run(ctx, msg, logger)
		switch {
		case err != nil:
			failed++
			logger.Error(check.name+" check failed", zap.Error(err))
		case !ran:
			logger.Info(check.name + " not configured, skipped")
		default:
			logger.Info(check.name + " check passed")
		}
	}

	logger.Info("=== All checks completed ===", zap.Int("failed", failed))
	if failed > 0 {
		os.Exit(1)
	}
}

func testMessage() (notify.Message, error) {
	instructions := "Take with a glass of water"
	med := &model.Medication{
		ID:           "00000000-0000-0000-0000-000000000000",
		Name:         "Test medication",
		Dosage:       "1 tablet",
		Instructions: &instructions,
		WithFood:     true,
	}
	return notify.RenderReminder(med, model.DoseStatusDue, time.Now())
}

func checkEmail(ctx context.Context, msg notify.Message, logger *zap.Logger) (bool, error) {
	apiKey := os.Getenv("SENDGRID_API_KEY")
	from := os.Getenv("SENDGRID_FROM_EMAIL")
	to := os.Getenv("CHECK_EMAIL_TO")
	if apiKey == "" || from == "" || to == "" {
		return false, nil
	}
	sender := notify.NewEmailSender(apiKey, "Med Alert Hub", from, logger)
	return true, sender.Send(ctx, to, msg)
}

func checkSMS(ctx context.Context, msg notify.Message, logger *zap.Logger) (bool, error) {
	to := os.Getenv("CHECK_SMS_TO")
	if os.Getenv("TWILIO_ACCOUNT_SID") == "" || to == "" {
		return false, nil
	}
	sender, err := notify.NewSMSSender(notify.SMSConfig{
		AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		From:       os.Getenv("TWILIO_FROM_NUMBER"),
	}, logger)
	if err != nil {
		return true, fmt.Errorf("failed to create SMS sender: %w", err)
	}
	return true, sender.Send(ctx, to, msg)
}

func checkDevice(ctx context.Context, msg notify.Message, logger *zap.Logger) (bool, error) {
	url := os.Getenv("CHECK_DEVICE_URL")
	if url == "" {
		return false, nil
	}
	return true, notify.NewDeviceHTTPSender(5*time.Second, logger).Send(ctx, url, msg)
}

func checkMQTT(ctx context.Context, msg notify.Message, logger *zap.Logger) (bool, error) {
	broker := os.Getenv("MQTT_BROKER_URL")
	device := os.Getenv("CHECK_MQTT_DEVICE")
	if broker == "" || device == "" {
		return false, nil
	}
	sender, err := notify.NewMQTTSender(notify.MQTTConfig{
		BrokerURL:   broker,
		ClientID:    "med-alert-hub-check",
		Username:    os.Getenv("MQTT_USERNAME"),
		Password:    os.Getenv("MQTT_PASSWORD"),
		TopicPrefix: "medications",
		QoS:         1,
	}, logger)
	if err != nil {
		return true, err
	}
	defer sender.Close()

	logger.Info("Publishing test reminder", zap.String("topic", sender.Topic(device)))
	return true, sender.Send(ctx, device, msg)
}

func checkBlobStorage(ctx context.Context, _ notify.Message, logger *zap.Logger) (bool, error) {
	account := os.Getenv("AZURE_STORAGE_ACCOUNT_NAME")
	key := os.Getenv("AZURE_STORAGE_ACCOUNT_KEY")
	if account == "" || key == "" {
		return false, nil
	}
	container := os.Getenv("AZURE_STORAGE_REPORT_CONTAINER")
	if container == "" {
		container = "adherence-reports"
	}

	client, err := azure.NewBlobStorageClient(account, key, container, logger)
	if err != nil {
		return true, fmt.Errorf("failed to create blob client: %w", err)
	}

	now := time.Now()
	document, err := pdf.NewPDFGenerator(logger).Generate(&pdf.ReportData{
		UserName:    "Integration check",
		DateRange:   now.AddDate(0, 0, -7).Format("2006-01-02") + " - " + now.Format("2006-01-02"),
		GeneratedAt: now,
	})
	if err != nil {
		return true, fmt.Errorf("failed to render test report: %w", err)
	}

	name := fmt.Sprintf("integration-check-%d.pdf", now.Unix())
	blobName, err := client.UploadReport(ctx, name, document)
	if err != nil {
		return true, fmt.Errorf("upload failed: %w", err)
	}
	downloaded, err := client.DownloadReport(ctx, blobName)
	if err != nil {
		return true, fmt.Errorf("download failed: %w", err)
	}
	if len(downloaded) != len(document) {
		return true, fmt.Errorf("downloaded %d bytes, uploaded %d", len(downloaded), len(document))
	}

	logger.Info("Report round trip succeeded",
		zap.String("blob_name", blobName),
		zap.Int("size_bytes", len(document)),
	)
	return true, nil
}

func checkOpenAI(ctx context.Context, _ notify.Message, logger *zap.Logger) (bool, error) {
	endpoint := os.Getenv("AZURE_OPENAI_ENDPOINT")
	apiKey := os.Getenv("AZURE_OPENAI_API_KEY")
	deployment := os.Getenv("AZURE_OPENAI_DEPLOYMENT")
	if endpoint == "" || apiKey == "" || deployment == "" {
		return false, nil
	}

	client, err := azure.NewOpenAIClient(endpoint, apiKey, deployment, logger)
	if err != nil {
		return true, fmt.Errorf("failed to create OpenAI client: %w", err)
	}

	narrative, err := client.SummarizeAdherence(ctx, azure.AdherenceFacts{
		PatientName:   "Integration check",
		Period:        "last 7 days",
		AdherenceRate: 85.7,
		CurrentStreak: 3,
		LongestStreak: 5,
		Taken:         12,
		Missed:        2,
		Medications:   []string{"Metformin 500mg"},
	})
	if err != nil {
		return true, fmt.Errorf("narrative failed: %w", err)
	}

	logger.Info("OpenAI narrative received", zap.Int("length", len(narrative)))
	return true, nil
}
