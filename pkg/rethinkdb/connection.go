package rethinkdb

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	r "gopkg.in/rethinkdb/rethinkdb-go.v6"
)

// Connection 检查使用的连接句柄
type Connection interface {
	r.QueryExecutor
	Server() (r.ServerResponse, error)
	Close(optArgs ...r.CloseOpts) error
}

// DialOptions 建连参数
type DialOptions struct {
	Address        string
	Username       string
	Password       string
	TLSCACert      string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// Dialer 建立到 RethinkDB 的连接
type Dialer interface {
	Dial(ctx context.Context, opts DialOptions) (Connection, error)
}

// DialFunc 函数适配 Dialer
type DialFunc func(ctx context.Context, opts DialOptions) (Connection, error)

func (f DialFunc) Dial(ctx context.Context, opts DialOptions) (Connection, error) {
	return f(ctx, opts)
}

// DriverDialer 使用 rethinkdb-go 驱动建连，每次检查独占一个连接
type DriverDialer struct{}

func (DriverDialer) Dial(ctx context.Context, opts DialOptions) (Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	connectOpts := r.ConnectOpts{
		Address:      opts.Address,
		Username:     opts.Username,
		Password:     opts.Password,
		Timeout:      opts.ConnectTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		InitialCap:   1,
		MaxOpen:      1,
	}
	if opts.TLSCACert != "" {
		tlsConfig, err := loadTLSConfig(opts.TLSCACert)
		if err != nil {
			return nil, err
		}
		connectOpts.TLSConfig = tlsConfig
	}
	session, err := r.Connect(connectOpts)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func loadTLSConfig(caFile string) (*tls.Config, error) {
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read ca cert %s: %w", caFile, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", caFile)
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// ConnectionError 建连或读取服务器身份失败
type ConnectionError struct {
	Address string
	Op      string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("rethinkdb %s %s: %v", e.Op, e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// identifiedConn 缓存建连时读取的服务器身份
type identifiedConn struct {
	Connection
	server r.ServerResponse
}

func (c *identifiedConn) Server() (r.ServerResponse, error) {
	return c.server, nil
}
