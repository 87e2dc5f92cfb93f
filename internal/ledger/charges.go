package ledger

import (
	"fmt"
	"strings"

	"github.com/rongwang/rentledger-server/internal/models"
)

// ValidateCharges checks rent charge inputs and converts them into unsaved
// RentCharge rows.
func ValidateCharges(inputs []models.RentChargeInput) ([]models.RentCharge, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: at least one rent charge is required", models.ErrValidation)
	}

	charges := make([]models.RentCharge, 0, len(inputs))
	for i, in := range inputs {
		if in.Amount.IsNegative() {
			return nil, fmt.Errorf("%w: rent charge %d: amount must be greater than or equal to 0", models.ErrValidation, i+1)
		}
		if strings.TrimSpace(in.Description) == "" {
			return nil, fmt.Errorf("%w: rent charge %d: description is required", models.ErrValidation, i+1)
		}
		if in.PaymentDay < 1 || in.PaymentDay > 31 {
			return nil, fmt.Errorf("%w: rent charge %d: payment day must be between 1 and 31", models.ErrValidation, i+1)
		}
		switch in.Frequency {
		case models.FrequencyMonthly:
		case models.FrequencyYearly:
			return nil, fmt.Errorf("%w: rent charge %d: yearly charges are not supported", models.ErrValidation, i+1)
		default:
			return nil, fmt.Errorf("%w: rent charge %d: frequency must be either %q or %q",
				models.ErrValidation, i+1, models.FrequencyMonthly, models.FrequencyYearly)
		}

		charges = append(charges, models.RentCharge{
			Amount:      in.Amount.Round(2),
			Description: in.Description,
			Notes:       in.Notes,
			Frequency:   in.Frequency,
			PaymentDay:  in.PaymentDay,
		})
	}
	return charges, nil
}
