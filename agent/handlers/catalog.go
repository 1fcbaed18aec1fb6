package handlers

import (
	"fmt"

	openaisdk "github.com/openai/openai-go"

	contractx "github.com/tanpawarit/Plant-Conversational-Hub/agent/contract"
	sapx "github.com/tanpawarit/Plant-Conversational-Hub/pkg/sap"
)

// Handler identifiers referenced by the intent catalog.
const (
	HandlerTelephoneRead  = "sap_telephone_read"
	HandlerTelephoneWrite = "sap_telephone_write"
	HandlerPostalRead     = "sap_postal_read"
	HandlerPostalWrite    = "sap_postal_write"
	HandlerGeneralChat    = "general_chat"
)

// Catalog maps handler identifiers to handler implementations. Built once
// at startup, read-only afterwards.
type Catalog map[string]contractx.Handler

// Deps carries the external capabilities handlers are built over.
type Deps struct {
	SAP        *sapx.Client
	Chat       *openaisdk.Client
	ChatModel  string
	ChatPrompt string
}

// Build wires every known handler. A nil capability leaves its handlers out
// of the catalog, so a registry referencing them fails fast at startup
// instead of at dispatch time.
func Build(deps Deps) Catalog {
	catalog := Catalog{}
	if deps.SAP != nil {
		catalog[HandlerTelephoneRead] = NewAddressReader(deps.SAP, sapx.TelephoneEntitySet)
		catalog[HandlerTelephoneWrite] = NewAddressWriter(deps.SAP, sapx.TelephoneEntitySet)
		catalog[HandlerPostalRead] = NewAddressReader(deps.SAP, sapx.PostalEntitySet)
		catalog[HandlerPostalWrite] = NewAddressWriter(deps.SAP, sapx.PostalEntitySet)
	}
	if deps.Chat != nil {
		catalog[HandlerGeneralChat] = NewGeneralChat(deps.Chat, deps.ChatModel, deps.ChatPrompt)
	}
	return catalog
}

// Resolve returns the handler registered under id.
func (c Catalog) Resolve(id string) (contractx.Handler, error) {
	h, ok := c[id]
	if !ok {
		return nil, fmt.Errorf("%w: no handler registered under id=%s", contractx.ErrValidation, id)
	}
	return h, nil
}
