package dto

type LineageResource struct {
	Name string `json:"name" binding:"required"`
	Kind string `json:"kind" binding:"required"`
}

type LineageComponent struct {
	Name string `json:"name" binding:"required"`
	Team string `json:"team,omitempty"`
}

type LineageEdge struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

type LineageSyncRequest struct {
	Resources  []LineageResource  `json:"resources,omitempty"`
	Components []LineageComponent `json:"components,omitempty"`
	Edges      []LineageEdge      `json:"edges,omitempty"`
}

type LineageSyncResponse struct {
	Resources  int `json:"resources"`
	Components int `json:"components"`
	Edges      int `json:"edges"`
}
