// go-dmcomm
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-dmcomm.
//
// go-dmcomm is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-dmcomm is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-dmcomm; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package api

import (
	"context"
	"errors"
	"net/http"

	dmcomm "github.com/ZaparooProject/go-dmcomm"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type conversationRequest struct {
	// Command is a command string or the name of a library entry
	Command string `json:"command" binding:"required"`
}

type outcomeResponse struct {
	Kind      string `json:"kind"`
	Report    string `json:"report"`
	Bytes     string `json:"bytes,omitempty"`
	Error     string `json:"error,omitempty"`
	Autofixed int    `json:"autofixed,omitempty"`
}

type conversationResponse struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Family   string            `json:"family"`
	Report   string            `json:"report"`
	Error    string            `json:"error,omitempty"`
	Outcomes []outcomeResponse `json:"outcomes"`
	OK       bool              `json:"ok"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newConversationResponse(c dmcomm.Conversation, result *dmcomm.Result) conversationResponse {
	resp := conversationResponse{
		ID:       result.ID.String(),
		Name:     c.Name,
		Family:   c.Family.String(),
		Report:   result.Report(),
		OK:       result.OK(),
		Outcomes: make([]outcomeResponse, 0, len(result.Outcomes)),
	}
	for _, o := range result.Outcomes {
		or := outcomeResponse{
			Kind:      o.Kind.String(),
			Report:    o.Report(),
			Autofixed: o.Autofixed(),
		}
		if len(o.Bytes) > 0 {
			or.Bytes = dmcomm.FormatBytes(o.Bytes)
		}
		if err := o.Err(); err != nil {
			or.Error = err.Error()
		}
		resp.Outcomes = append(resp.Outcomes, or)
	}
	return resp
}

// runConversation handles POST /v1/conversations
func (s *Server) runConversation(c *gin.Context) {
	var req conversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	conv, err := s.library.Resolve(req.Command)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.locker.Lock()
	result, err := s.runner.Run(ctx, conv)
	s.locker.Unlock()

	if errors.Is(err, dmcomm.ErrFamilyMismatch) {
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveConversation(conv.Family, result, err)
	}
	if err != nil && result == nil {
		s.logger.Error("conversation failed", zap.String("command", req.Command), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	resp := newConversationResponse(conv, result)
	status := http.StatusOK
	if err != nil {
		resp.OK = false
		resp.Error = err.Error()
		status = http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		s.logger.Warn("conversation interrupted",
			zap.String("id", resp.ID),
			zap.String("command", req.Command),
			zap.Error(err))
	} else {
		s.logger.Info("conversation finished",
			zap.String("id", resp.ID),
			zap.String("name", conv.Name),
			zap.Bool("ok", resp.OK))
	}
	c.JSON(status, resp)
}

// listLibrary handles GET /v1/library
func (s *Server) listLibrary(c *gin.Context) {
	names := []string{}
	if s.library != nil {
		names = s.library.Names()
	}
	c.JSON(http.StatusOK, gin.H{"conversations": names})
}
