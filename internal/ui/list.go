package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/omrelabs/omre/internal/models"
)

var _ list.Item = predictionItem{}

// predictionItem wraps [models.Prediction] to implement [list.Item].
type predictionItem struct {
	prediction models.Prediction
}

func (i predictionItem) FilterValue() string { return i.prediction.Tradingsymbol }
func (i predictionItem) Title() string {
	return fmt.Sprintf("%s  %.4f", i.prediction.Tradingsymbol, i.prediction.Score)
}
func (i predictionItem) Description() string {
	return fmt.Sprintf("%s at %.2f, target %.2f",
		i.prediction.Signal, i.prediction.LastClose, i.prediction.Target)
}
