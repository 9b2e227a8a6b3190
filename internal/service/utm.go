package service

import (
	"errors"
	"net/url"
	"strings"

	"github.com/SergeiKhy/shorty/internal/models"
)

var errNotAbsoluteURL = errors.New("url has no scheme or host")

// applyUTM дописывает utm_* параметры к query строки rawURL.
// Порядок фиксирован: source, medium, campaign. Существующие параметры сохраняются.
func applyUTM(rawURL string, params *models.UTMParams) (string, error) {
	if params.IsEmpty() {
		return rawURL, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errNotAbsoluteURL
	}
	if u.Path == "" {
		u.Path = "/"
	}

	pairs := make([]string, 0, 3)
	if params.Source != "" {
		pairs = append(pairs, "utm_source="+url.QueryEscape(params.Source))
	}
	if params.Medium != "" {
		pairs = append(pairs, "utm_medium="+url.QueryEscape(params.Medium))
	}
	if params.Campaign != "" {
		pairs = append(pairs, "utm_campaign="+url.QueryEscape(params.Campaign))
	}

	query := strings.Join(pairs, "&")
	if u.RawQuery != "" {
		query = u.RawQuery + "&" + query
	}
	u.RawQuery = query

	return u.String(), nil
}
