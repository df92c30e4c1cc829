package service

import (
	"spot_bot/internal/models"

	"github.com/pkg/errors"
)

// ResolveAsset finds coin among the spot tokens and the first pair whose base
// token it is.
func ResolveAsset(meta models.SpotMeta, coin string) (models.AssetSpec, error) {
	spec := models.AssetSpec{Coin: coin, TokenIndex: -1}
	for _, t := range meta.Tokens {
		if t.Name == coin {
			spec.SzDecimals = t.SzDecimals
			spec.WeiDecimals = t.WeiDecimals
			spec.TokenIndex = t.Index
			break
		}
	}
	if spec.TokenIndex < 0 {
		return models.AssetSpec{}, errors.Wrapf(models.ErrStartupFault, "could not find coin %s in tokens", coin)
	}

	for _, p := range meta.Universe {
		if len(p.Tokens) > 0 && p.Tokens[0] == spec.TokenIndex {
			spec.PairName = p.Name
			spec.PairIndex = p.Index
			return spec, nil
		}
	}
	return models.AssetSpec{}, errors.Wrapf(models.ErrStartupFault, "could not find coin %s in universe", coin)
}
