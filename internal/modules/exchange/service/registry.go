package service

import (
	"errors"
	"fmt"
	"sync"

	"lever_bot/internal/models"
	marketdata "lever_bot/internal/modules/marketdata/service"
	pricestore "lever_bot/internal/modules/pricestore/service"
)

var ErrUnknownProvider = errors.New("exchange provider is not registered")

type Provider string

const (
	ProviderBinance Provider = "binance"
	ProviderPaper   Provider = "paper"
)

type Factory func(creds models.Credentials) (Capability, error)

// CredentialField — декларативная схема настроек провайдера (для UI и
// валидации), вместо рефлексивного биндинга по именам полей.
type CredentialField struct {
	Name     string
	Label    string
	Secret   bool
	Required bool
}

var credentialSchemas = map[Provider][]CredentialField{
	ProviderBinance: {
		{Name: "api_key", Label: "API Key", Required: true},
		{Name: "api_secret", Label: "API Secret", Secret: true, Required: true},
		{Name: "testnet", Label: "Use testnet"},
	},
	ProviderPaper: {},
}

// Registry — явный маппинг тега провайдера в конструктор, собирается один
// раз на старте. Никакого поиска типов в рантайме.
type Registry struct {
	mu        sync.Mutex
	factories map[Provider]Factory
	cache     map[string]Capability // botID -> собранный клиент
}

func NewRegistry(prices *pricestore.Store, paperPriceSource string, books *marketdata.Books, depthOffset int) *Registry {
	r := &Registry{
		factories: make(map[Provider]Factory),
		cache:     make(map[string]Capability),
	}
	r.Register(ProviderBinance, func(creds models.Credentials) (Capability, error) {
		return NewBinance(creds, prices), nil
	})
	r.Register(ProviderPaper, func(models.Credentials) (Capability, error) {
		return NewPaper(prices, paperPriceSource, books, depthOffset), nil
	})
	return r
}

func (r *Registry) Register(p Provider, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[p] = f
}

// Resolve отдаёт capability для бота; клиент кэшируется по боту.
func (r *Registry) Resolve(bot *models.Bot) (Capability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.cache[bot.ID]; ok {
		return c, nil
	}

	f, ok := r.factories[Provider(bot.Exchange)]
	if !ok {
		return nil, fmt.Errorf("provider %q: %w", bot.Exchange, ErrUnknownProvider)
	}
	c, err := f(bot.Credentials)
	if err != nil {
		return nil, fmt.Errorf("build provider %q: %w", bot.Exchange, err)
	}
	r.cache[bot.ID] = c
	return c, nil
}

// Schema — поля настроек провайдера.
func Schema(p Provider) []CredentialField {
	return credentialSchemas[p]
}
