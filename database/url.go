package database

import (
	"fmt"
	"net/url"
)

// ConstructDatabaseURL points baseURL at databaseName. Connections default to
// sslmode=disable unless the base URL says otherwise. An unparsable base URL is
// returned untouched so pgx can report the error.
func ConstructDatabaseURL(baseURL, databaseName string) string {
	if databaseName == "" {
		return baseURL
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL
	}
	u.Path = "/" + databaseName

	query := u.Query()
	if query.Get("sslmode") == "" {
		query.Set("sslmode", "disable")
	}
	u.RawQuery = query.Encode()

	return u.String()
}

// BuildDatabaseURL builds a postgres URL without a database name
func BuildDatabaseURL(host, port, user, password, sslMode string) string {
	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%s", host, port),
		User:   url.User(user),
	}
	if password != "" {
		u.User = url.UserPassword(user, password)
	}
	if sslMode != "" {
		u.RawQuery = url.Values{"sslmode": {sslMode}}.Encode()
	}
	return u.String()
}
