package service

import (
	"testing"

	"lever_bot/internal/models"
	pricestore "lever_bot/internal/modules/pricestore/service"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/stretchr/testify/assert"
)

func TestBinanceEndpointPerClient(t *testing.T) {
	prices := pricestore.New()

	testnet := NewBinance(models.Credentials{APIKey: "k", APISecret: "s", Testnet: true}, prices)
	// mainnet-клиент, собранный после testnet-клиента, не должен его унаследовать
	mainnet := NewBinance(models.Credentials{APIKey: "k2", APISecret: "s2"}, prices)

	assert.Equal(t, futuresTestnetURL, testnet.client.BaseURL)
	assert.Equal(t, futuresAPIURL, mainnet.client.BaseURL)
	assert.False(t, futures.UseTestnet)
}
