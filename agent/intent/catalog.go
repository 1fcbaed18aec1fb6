package intent

import (
	"fmt"

	"github.com/spf13/viper"

	contractx "github.com/tanpawarit/Plant-Conversational-Hub/agent/contract"
)

// FallbackHandlerID identifies the conversational fallback handler. It is
// the only handler whose intents may declare no required entities.
const FallbackHandlerID = "general_chat"

type catalogFile struct {
	Intents []contractx.IntentDefinition `mapstructure:"intents"`
}

// LoadCatalog reads the declarative intent catalog from a JSON document.
// The catalog is read once at process start; changing it requires a restart.
func LoadCatalog(path string) ([]contractx.IntentDefinition, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read intent catalog %s: %w", path, err)
	}

	var file catalogFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("decode intent catalog %s: %w", path, err)
	}
	if len(file.Intents) == 0 {
		return nil, fmt.Errorf("%w: intent catalog %s declares no intents", contractx.ErrValidation, path)
	}

	for _, def := range file.Intents {
		if len(def.Required) == 0 && def.Handler != FallbackHandlerID {
			return nil, fmt.Errorf("%w: action intent=%s must declare required entities", contractx.ErrValidation, def.Name)
		}
	}

	return file.Intents, nil
}
