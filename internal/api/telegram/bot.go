package telegram

import (
	"context"
	"io"
	"net/http"

	"github.com/getsentry/sentry-go"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	app "linac-qc/internal/application"
	"linac-qc/internal/container"
	"linac-qc/internal/domain/entity"
)

const (
	msgStart = `👋 Привет! Я бот контроля качества ускорителя.

📂 Отправляйте снимки EPID в формате DICOM документом (без сжатия).

📋 Команды:
/leafpos — тест положения лепестков (серия снимков)
/field — проверка размера поля (один снимок)
/slit — ширина щелей (один снимок)
/profile — эталонные позиции
/help — справка
/cancel — отменить текущую операцию`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Выберите тест: /leafpos, /field или /slit
2️⃣ Отправьте DICOM-файлы документом
3️⃣ Получите результат с допусками

💡 Для /leafpos порядок снимков не важен: позиция каждого определяется по краям лепестков.

📋 Команды:
/leafpos — положение лепестков
/field — размер поля
/slit — ширина щелей
/profile — эталонные позиции
/cancel — отменить операцию`

	msgAwaitingField   = "📂 Отправьте DICOM-снимок поля."
	msgAwaitingSlit    = "📂 Отправьте DICOM-снимок щелевого теста."
	msgBusy            = "⏳ Предыдущий снимок ещё обрабатывается, подождите."
	msgCancelled       = "❌ Операция отменена. Выберите тест: /leafpos, /field или /slit."
	msgSendCommand     = "📋 Сначала выберите тест: /leafpos, /field или /slit."
	msgSendDocument    = "📂 Пожалуйста, отправьте DICOM-файл документом."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing      = "⏳ Обрабатываю снимок..."
	msgProcessingError = "⚠️ Не удалось обработать снимок. Попробуйте ещё раз."
)

// Bot представляет Telegram-бота
type Bot struct {
	api       *tgbotapi.BotAPI
	container *container.Container
}

// NewBot создаёт нового бота
func NewBot(token string, c *container.Container) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", api.Self.UserName)

	return &Bot{
		api:       api,
		container: c,
	}, nil
}

// Run запускает основной цикл обработки сообщений до отмены ctx
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	operator, err := b.container.OperatorService.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		log.Printf("Error getting operator: %v", err)
		return
	}
	if operator.Name == "" {
		operator.Name = operatorName(msg.From)
	}

	// Обработка команд
	if msg.IsCommand() {
		b.handleCommand(ctx, msg, operator)
		return
	}

	// Обработка документов
	if msg.Document != nil {
		b.handleDocument(ctx, msg, operator)
		return
	}

	if len(msg.Photo) > 0 {
		b.sendMessage(msg.Chat.ID, msgSendDocument)
		return
	}

	// Текстовое сообщение (не команда)
	b.sendMessage(msg.Chat.ID, msgSendCommand)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, operator *entity.Operator) {
	leaf := b.container.LeafPositionService
	var err error

	switch msg.Command() {
	case "start":
		_, err = b.container.OperatorService.Cancel(ctx, operator.ID, msg.Chat.ID)
		b.sendMessage(msg.Chat.ID, msgStart)

	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)

	case "leafpos":
		_, err = leaf.Begin(ctx, operator.ID, msg.Chat.ID)
		b.sendMessage(msg.Chat.ID, FormatLeafStart(leaf.Expected()))

	case "field":
		_, err = b.container.OperatorService.BeginField(ctx, operator.ID, msg.Chat.ID)
		b.sendMessage(msg.Chat.ID, msgAwaitingField)

	case "slit":
		_, err = b.container.OperatorService.BeginSlit(ctx, operator.ID, msg.Chat.ID)
		b.sendMessage(msg.Chat.ID, msgAwaitingSlit)

	case "profile":
		b.sendMessage(msg.Chat.ID, FormatProfile(leaf.Profile()))

	case "cancel":
		_, err = leaf.Cancel(ctx, operator.ID, msg.Chat.ID)
		b.sendMessage(msg.Chat.ID, msgCancelled)

	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}

	if err != nil {
		log.Printf("Error handling /%s: %v", msg.Command(), err)
	}
}

// handleDocument обрабатывает DICOM-файл в зависимости от состояния оператора
func (b *Bot) handleDocument(ctx context.Context, msg *tgbotapi.Message, operator *entity.Operator) {
	switch operator.State {
	case entity.StateAwaitingLeafImage, entity.StateAwaitingFieldImage, entity.StateAwaitingSlitImage:
	case entity.StateProcessing:
		b.sendMessage(msg.Chat.ID, msgBusy)
		return
	default:
		b.sendMessage(msg.Chat.ID, msgSendCommand)
		return
	}

	operators := b.container.OperatorService
	prev, err := operators.StartProcessing(ctx, operator.ID, msg.Chat.ID)
	if err != nil {
		if errors.Is(err, app.ErrOperatorBusy) {
			b.sendMessage(msg.Chat.ID, msgBusy)
			return
		}
		log.Printf("Error starting processing: %v", err)
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}
	defer func() {
		if err := operators.FinishProcessing(ctx, operator.ID, msg.Chat.ID, prev); err != nil {
			log.Printf("Error restoring operator state: %v", err)
		}
	}()

	data, err := b.downloadFile(msg.Document.FileID)
	if err != nil {
		log.Printf("Error downloading document: %v", err)
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}
	filename := msg.Document.FileName

	switch prev {
	case entity.StateAwaitingLeafImage:
		progress, err := b.container.LeafPositionService.AcceptImage(ctx, operator.ID, msg.Chat.ID, operator.Name, filename, data)
		if err != nil {
			b.reportError(msg.Chat.ID, filename, err)
			return
		}
		b.sendMessage(msg.Chat.ID, FormatProgress(progress))
		if progress.Report != nil {
			b.sendMessage(msg.Chat.ID, FormatIdentification(progress.Report))
		}

	case entity.StateAwaitingFieldImage:
		b.sendMessage(msg.Chat.ID, msgProcessing)
		report, err := b.container.FieldService.Analyze(ctx, filename, data)
		if err != nil {
			b.reportError(msg.Chat.ID, filename, err)
			return
		}
		b.sendMessage(msg.Chat.ID, FormatFieldReport(report))
		if _, err := operators.Cancel(ctx, operator.ID, msg.Chat.ID); err != nil {
			log.Printf("Error resetting operator state: %v", err)
		}

	case entity.StateAwaitingSlitImage:
		b.sendMessage(msg.Chat.ID, msgProcessing)
		report, err := b.container.SlitService.Analyze(ctx, filename, data)
		if err != nil {
			b.reportError(msg.Chat.ID, filename, err)
			return
		}
		b.sendMessage(msg.Chat.ID, FormatSlitReport(report))
		if _, err := operators.Cancel(ctx, operator.ID, msg.Chat.ID); err != nil {
			log.Printf("Error resetting operator state: %v", err)
		}
	}
}

// reportError отвечает оператору; неожиданные ошибки уходят в Sentry
func (b *Bot) reportError(chatID int64, filename string, err error) {
	if entity.IsImageRejected(err) {
		log.WithError(err).WithField("file", filename).Warn("image rejected")
		b.sendMessage(chatID, FormatRejected(filename, err))
		return
	}

	log.WithError(err).WithField("file", filename).Error("image processing failed")
	sentry.CaptureException(err)
	b.sendMessage(chatID, msgProcessingError)
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, errors.Wrap(err, "get file")
	}

	fileURL := file.Link(b.api.Token)

	resp, err := http.Get(fileURL)
	if err != nil {
		return nil, errors.Wrap(err, "download file")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

func operatorName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	if u.UserName != "" {
		return u.UserName
	}
	return u.FirstName
}
