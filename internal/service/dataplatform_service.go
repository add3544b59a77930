package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/ticketlab/concert-reservation/internal/event"
)

// DataPlatformService forwards settled sales to the analytics
// platform. The outbound HTTP call is mocked with a structured log
// line until the platform endpoint exists.
type DataPlatformService struct {
	logger *zap.SugaredLogger
}

func NewDataPlatformService(logger *zap.SugaredLogger) *DataPlatformService {
	return &DataPlatformService{logger: logger}
}

// Record ships one completed sale.
func (s *DataPlatformService) Record(ctx context.Context, payload event.PaymentCompletedPayload) error {
	s.logger.Infow("sale forwarded to data platform",
		"paymentId", payload.PaymentID,
		"userId", payload.UserID,
		"reservationId", payload.ReservationID,
		"seatId", payload.SeatID,
		"amount", payload.Amount,
	)
	return nil
}
