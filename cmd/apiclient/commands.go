package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/layer-3/apiclient"
	"github.com/layer-3/apiclient/core"
)

type command struct {
	api    apiclient.API
	stdin  io.Reader
	stdout io.Writer
}

func (c *command) dispatch(ctx context.Context, name string, args []string) error {
	switch name {
	case "login":
		return c.login(ctx, args)
	case "logout":
		c.api.Logout(ctx)
		fmt.Fprintln(c.stdout, "logged out")
		return nil
	case "status":
		return c.status(ctx)
	case "get":
		return c.get(ctx, args)
	case "delete":
		return c.send(ctx, http.MethodDelete, args)
	case "post":
		return c.send(ctx, http.MethodPost, args)
	case "put":
		return c.send(ctx, http.MethodPut, args)
	case "patch":
		return c.send(ctx, http.MethodPatch, args)
	case "upload":
		return c.upload(ctx, args)
	default:
		return fmt.Errorf("unknown command %q", name)
	}
}

func (c *command) login(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("login", flag.ContinueOnError)
	username := flags.String("u", "", "username")
	password := flags.String("p", os.Getenv("APICLIENT_PASSWORD"), "password")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *username == "" || *password == "" {
		return errors.New("login needs -u and -p (or APICLIENT_PASSWORD)")
	}

	if err := c.api.Login(ctx, map[string]string{"username": *username, "password": *password}); err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, "logged in")
	return nil
}

func (c *command) status(ctx context.Context) error {
	info := c.api.Session(ctx)
	switch {
	case !info.Authenticated:
		fmt.Fprintln(c.stdout, "not logged in")
	case info.AccessExpiresAt.IsZero():
		fmt.Fprintf(c.stdout, "logged in (refresh token: %t)\n", info.HasRefresh)
	case info.AccessExpired(time.Now()):
		fmt.Fprintf(c.stdout, "logged in, access expired %s ago (refresh token: %t)\n",
			time.Since(info.AccessExpiresAt).Round(time.Second), info.HasRefresh)
	default:
		fmt.Fprintf(c.stdout, "logged in, access valid for %s (refresh token: %t)\n",
			time.Until(info.AccessExpiresAt).Round(time.Second), info.HasRefresh)
	}
	return nil
}

func (c *command) get(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("get needs a path")
	}
	query, err := parseQuery(args[1:])
	if err != nil {
		return err
	}
	resp, err := c.api.Get(ctx, args[0], query)
	if err != nil {
		return err
	}
	return c.print(resp)
}

func (c *command) send(ctx context.Context, method string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%s needs a path", strings.ToLower(method))
	}

	req := &core.Request{Method: method, Path: args[0]}
	if len(args) > 1 {
		body, err := c.readBody(args[1])
		if err != nil {
			return err
		}
		if !json.Valid(body) {
			return errors.New("body is not valid JSON")
		}
		req.Body = body
		req.ContentType = "application/json"
	}

	resp, err := c.api.Do(ctx, req)
	if err != nil {
		return err
	}
	return c.print(resp)
}

func (c *command) upload(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("upload needs a path")
	}
	form, err := parseForm(args[1:])
	if err != nil {
		return err
	}
	resp, err := c.api.Upload(ctx, http.MethodPost, args[0], form)
	if err != nil {
		return err
	}
	return c.print(resp)
}

// readBody resolves a body argument: literal JSON, @file or - for stdin
func (c *command) readBody(arg string) ([]byte, error) {
	switch {
	case arg == "-":
		return io.ReadAll(c.stdin)
	case strings.HasPrefix(arg, "@"):
		return os.ReadFile(strings.TrimPrefix(arg, "@"))
	default:
		return []byte(arg), nil
	}
}

// print writes the body, indented when it is JSON
func (c *command) print(resp *core.Response) error {
	if len(resp.Body) == 0 {
		fmt.Fprintf(c.stdout, "%d %s\n", resp.Status, http.StatusText(resp.Status))
		return nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, resp.Body, "", "  "); err != nil {
		out.Reset()
		out.Write(resp.Body)
	}
	out.WriteByte('\n')
	_, err := out.WriteTo(c.stdout)
	return err
}

func parseQuery(args []string) (url.Values, error) {
	query := url.Values{}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("query parameter %q is not key=value", arg)
		}
		query.Add(key, value)
	}
	return query, nil
}

// parseForm turns name=value into fields and field@path into files
func parseForm(args []string) (*core.Multipart, error) {
	form := &core.Multipart{}
	for _, arg := range args {
		if name, value, ok := strings.Cut(arg, "="); ok && name != "" {
			form.AddField(name, value)
			continue
		}
		field, path, ok := strings.Cut(arg, "@")
		if !ok || field == "" || path == "" {
			return nil, fmt.Errorf("form argument %q is neither name=value nor field@path", arg)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		err = form.AddFile(field, filepath.Base(path), f)
		f.Close()
		if err != nil {
			return nil, err
		}
	}
	return form, nil
}
