// internal/amm/init_treasury.go
package amm

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-amm/internal/events"
	"github.com/rovshanmuradov/solana-amm/internal/runtime"
)

func (p *Program) initTreasury(ictx *runtime.InvokeContext, payer, treasury solana.PublicKey) error {
	if err := requireSigner(ictx, payer); err != nil {
		return err
	}
	expected, bump, err := DeriveTreasury(p.id)
	if err != nil {
		return err
	}
	if !treasury.Equals(expected) {
		return fmt.Errorf("%w: treasury %s, expected %s", ErrInvalidAccount, treasury, expected)
	}

	exists, err := ictx.Exists(treasury)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyInitialized
	}

	data, err := (&Treasury{Authority: payer, Bump: bump}).Marshal()
	if err != nil {
		return err
	}
	if err := ictx.Create(treasury, data); err != nil {
		return err
	}

	ictx.Emit(events.TreasuryInitializedEvent{
		BaseEvent: events.NewBase(events.TreasuryInitialized),
		Treasury:  treasury,
		Authority: payer,
	})
	p.logger.Info("Treasury initialized",
		zap.Stringer("treasury", treasury),
		zap.Stringer("authority", payer))
	return nil
}
