package session

// FallbackProTraderPriceID is the live pro-trader price this service shipped
// against. It is only consulted when PRICE_PRO_TRADER is not configured, so a
// deployment that sets its own price IDs never touches it.
const FallbackProTraderPriceID = "price_1SEhYxLyhHN1qVrAWiuGgO0q"

// TierPrices holds the billing price IDs that gate each paid tier.
type TierPrices struct {
	Pro       string
	ProTrader string
}

// ClassifyTier maps the price IDs found on a customer's valid subscriptions
// to a tier. pro_trader wins over pro when both are present; anything else
// is free.
func ClassifyTier(priceIDs []string, prices TierPrices) Tier {
	proTrader := prices.ProTrader
	if proTrader == "" {
		proTrader = FallbackProTraderPriceID
	}

	hasPro := false
	for _, id := range priceIDs {
		if id == "" {
			continue
		}
		if id == proTrader {
			return TierProTrader
		}
		if prices.Pro != "" && id == prices.Pro {
			hasPro = true
		}
	}
	if hasPro {
		return TierPro
	}
	return TierFree
}
