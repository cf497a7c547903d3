package entity

// OperatorState состояние оператора в диалоге
type OperatorState string

const (
	StateMainMenu           OperatorState = "main_menu"            // В главном меню
	StateAwaitingLeafImage  OperatorState = "awaiting_leaf_image"  // Сбор снимков теста положения лепестков
	StateAwaitingFieldImage OperatorState = "awaiting_field_image" // Ожидание снимка поля
	StateAwaitingSlitImage  OperatorState = "awaiting_slit_image"  // Ожидание снимка щелей
	StateProcessing         OperatorState = "processing"           // Обработка изображения
)

// Operator представляет оператора, загружающего снимки
type Operator struct {
	ID     int64         // Telegram User ID
	ChatID int64         // Telegram Chat ID
	Name   string        // Имя для отчётов
	State  OperatorState // Текущее состояние оператора
}

// NewOperator создаёт оператора с начальным состоянием
func NewOperator(operatorID, chatID int64) *Operator {
	return &Operator{
		ID:     operatorID,
		ChatID: chatID,
		State:  StateMainMenu,
	}
}

// SetState обновляет состояние оператора
func (o *Operator) SetState(state OperatorState) {
	o.State = state
}
