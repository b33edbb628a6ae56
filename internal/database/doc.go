// Package database manages the PostgreSQL pool backing the book archive.
//
// The archive is append-only: booksync inserts synced book views, trades and
// tickers but never reads them back.
package database
