package handlers

import (
	"errors"

	"github.com/OCAP2/helmsync/internal/authz"
	"github.com/OCAP2/helmsync/internal/controls"
	"github.com/OCAP2/helmsync/internal/dispatcher"
	"github.com/OCAP2/helmsync/internal/economy"
	"github.com/OCAP2/helmsync/internal/mission"
	"github.com/OCAP2/helmsync/internal/parser"
	"github.com/OCAP2/helmsync/internal/registry"
	"github.com/OCAP2/helmsync/internal/stations"
	"github.com/OCAP2/helmsync/internal/storage"
	"github.com/OCAP2/helmsync/pkg/streaming"
)

// ErrorPayload maps a handler error to the wire error sent back to the
// sender of an eventType message. Unknown errors are reported as internal
// without their text.
func ErrorPayload(err error, eventType string) streaming.ErrorPayload {
	out := streaming.ErrorPayload{Message: err.Error(), For: eventType}

	var held *stations.HeldError
	switch {
	case errors.As(err, &held):
		out.Code = streaming.CodeConflict
		out.Holder = held.Holder
	case errors.Is(err, parser.ErrBadPayload),
		errors.Is(err, stations.ErrUnknownStation),
		errors.Is(err, dispatcher.ErrUnknownType):
		out.Code = streaming.CodeBadRequest
	case errors.Is(err, authz.ErrDenied),
		errors.Is(err, stations.ErrNotCrew),
		errors.Is(err, mission.ErrRankTooLow):
		out.Code = streaming.CodeNoPermission
	case errors.Is(err, controls.ErrInsufficientFunds),
		errors.Is(err, economy.ErrOverdraft):
		out.Code = streaming.CodeInsufficientFunds
	case errors.Is(err, stations.ErrNotHolder),
		errors.Is(err, mission.ErrAlreadyAssigned),
		errors.Is(err, storage.ErrConflict):
		out.Code = streaming.CodeConflict
	case errors.Is(err, ErrNoVessel),
		errors.Is(err, ErrNotConnected),
		errors.Is(err, registry.ErrVesselNotFound),
		errors.Is(err, mission.ErrUnknownMission),
		errors.Is(err, storage.ErrNotFound):
		out.Code = streaming.CodeNotFound
	default:
		out.Code = streaming.CodeInternal
		out.Message = "internal error"
	}
	return out
}
