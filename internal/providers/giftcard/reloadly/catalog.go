package reloadly

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/giftpool/internal/providers/gateway"
)

type pageKind int

const (
	pageKindArray pageKind = iota + 1
	pageKindEnvelope
)

// productPage is the normalized form of a /products response, which is
// either a bare array or a paged envelope depending on API version.
type productPage struct {
	kind       pageKind
	products   []productDTO
	totalPages int
	last       bool
}

func (p productPage) done(page int) bool {
	switch p.kind {
	case pageKindArray:
		return true
	default:
		if p.last || len(p.products) == 0 {
			return true
		}
		return p.totalPages > 0 && page >= p.totalPages
	}
}

type envelopeDTO struct {
	Content    []productDTO `json:"content"`
	TotalPages int          `json:"totalPages"`
	Last       bool         `json:"last"`
}

type productDTO struct {
	ProductID                   int64             `json:"productId"`
	ProductName                 string            `json:"productName"`
	DenominationType            string            `json:"denominationType"`
	RecipientCurrencyCode       string            `json:"recipientCurrencyCode"`
	MinRecipientDenomination    *decimal.Decimal  `json:"minRecipientDenomination"`
	MaxRecipientDenomination    *decimal.Decimal  `json:"maxRecipientDenomination"`
	FixedRecipientDenominations []decimal.Decimal `json:"fixedRecipientDenominations"`
	LogoURLs                    []string          `json:"logoUrls"`
	Brand                       struct {
		BrandName string `json:"brandName"`
	} `json:"brand"`
	Country struct {
		ISOName string `json:"isoName"`
	} `json:"country"`
}

func (p productDTO) toProduct() gateway.Product {
	product := gateway.Product{
		ID:               p.ProductID,
		Name:             p.ProductName,
		Brand:            p.Brand.BrandName,
		CountryCode:      p.Country.ISOName,
		CurrencyCode:     p.RecipientCurrencyCode,
		DenominationType: gateway.DenominationType(strings.ToUpper(p.DenominationType)),
		MinAmount:        p.MinRecipientDenomination,
		MaxAmount:        p.MaxRecipientDenomination,
		FixedAmounts:     p.FixedRecipientDenominations,
	}
	if len(p.LogoURLs) > 0 {
		product.LogoURL = p.LogoURLs[0]
	}
	return product
}

func decodeProductPage(raw []byte) (productPage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return productPage{kind: pageKindArray}, nil
	}

	if trimmed[0] == '[' {
		var items []productDTO
		if err := decodeInto(trimmed, &items); err != nil {
			return productPage{}, err
		}
		return productPage{kind: pageKindArray, products: items}, nil
	}

	var env envelopeDTO
	if err := json.Unmarshal(trimmed, &env); err != nil || trimmed[0] != '{' {
		return productPage{}, &gateway.Error{Provider: providerName, Kind: gateway.KindUnknown, Message: "undecodable product page", Err: err}
	}
	return productPage{
		kind:       pageKindEnvelope,
		products:   env.Content,
		totalPages: env.TotalPages,
		last:       env.Last,
	}, nil
}
