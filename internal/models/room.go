package models

type Room struct {
	ID        string `yaml:"id" json:"id"`
	Name      string `yaml:"name" json:"name"`
	Building  string `yaml:"building" json:"building"`
	Capacity  int    `yaml:"capacity" json:"capacity"`
	SortOrder int    `yaml:"sort_order" json:"sort_order"`
	IsActive  bool   `yaml:"is_active" json:"is_active"`
}
