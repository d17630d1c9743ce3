package core

import "lifecyclecore/pkg/domain"

type (
	EntityType     = domain.EntityType
	Stage          = domain.Stage
	ToolCategory   = domain.ToolCategory
	Tool           = domain.Tool
	Connection     = domain.Connection
	ConnectionType = domain.ConnectionType
	Dataset        = domain.Dataset
	Violation      = domain.Violation
	Result         = domain.Result
	RulesEngine    = domain.RulesEngine
	NotFoundError  = domain.NotFoundError
	IntegrityError = domain.IntegrityError
)

const (
	EntityStage        = domain.EntityStage
	EntityToolCategory = domain.EntityToolCategory
	EntityTool         = domain.EntityTool
	EntityConnection   = domain.EntityConnection
)

const (
	ConnectionNormal      = domain.ConnectionNormal
	ConnectionAlternative = domain.ConnectionAlternative
)

const (
	SourceOpen   = domain.SourceOpen
	SourceClosed = domain.SourceClosed
)

const (
	ScopeGeneric      = domain.ScopeGeneric
	ScopeDisciplinary = domain.ScopeDisciplinary
)
