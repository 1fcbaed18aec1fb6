package handlers

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Plant-Conversational-Hub/agent/contract"
	sapx "github.com/tanpawarit/Plant-Conversational-Hub/pkg/sap"
)

// AddressReader fulfills the Get* address intents: a keyed read when PLANT
// is supplied, a full list otherwise.
type AddressReader struct {
	sap       *sapx.Client
	entitySet string
}

func NewAddressReader(client *sapx.Client, entitySet string) *AddressReader {
	return &AddressReader{sap: client, entitySet: entitySet}
}

func (h *AddressReader) Handle(ctx context.Context, entities contractx.EntityMap) (contractx.HandlerResult, error) {
	if plant := entities["PLANT"]; plant != "" {
		rec, err := h.sap.GetAddressByPlant(ctx, h.entitySet, plant)
		if err != nil {
			log.Error().Err(err).Str("entity_set", h.entitySet).Str("plant", plant).Msg("address read failed")
			return contractx.HandlerResult{}, fmt.Errorf("%w: backend rejected %s read for plant %s", contractx.ErrHandler, h.entitySet, plant)
		}
		return contractx.HandlerResult{Data: rec}, nil
	}

	recs, err := h.sap.ListAddresses(ctx, h.entitySet)
	if err != nil {
		log.Error().Err(err).Str("entity_set", h.entitySet).Msg("address list failed")
		return contractx.HandlerResult{}, fmt.Errorf("%w: backend rejected %s list", contractx.ErrHandler, h.entitySet)
	}
	return contractx.HandlerResult{Data: recs}, nil
}

// AddressWriter fulfills the Create*/Update* address intents via the
// backend's upsert semantics. The side effect is atomic at the backend:
// either the record write lands or the whole call fails.
type AddressWriter struct {
	sap       *sapx.Client
	entitySet string
}

func NewAddressWriter(client *sapx.Client, entitySet string) *AddressWriter {
	return &AddressWriter{sap: client, entitySet: entitySet}
}

func (h *AddressWriter) Handle(ctx context.Context, entities contractx.EntityMap) (contractx.HandlerResult, error) {
	rec, err := h.sap.UpsertAddress(ctx, h.entitySet, entities)
	if err != nil {
		log.Error().Err(err).Str("entity_set", h.entitySet).Msg("address upsert failed")
		return contractx.HandlerResult{}, fmt.Errorf("%w: backend rejected %s write", contractx.ErrHandler, h.entitySet)
	}
	return contractx.HandlerResult{Data: rec}, nil
}
