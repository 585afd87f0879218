package models

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// Card lists and final-hand maps live in JSON columns. These helpers keep the
// encode/decode noise out of the resolver.

func CardsJSON(ids []string) datatypes.JSON {
	if ids == nil {
		ids = []string{}
	}
	b, _ := json.Marshal(ids)
	return datatypes.JSON(b)
}

func JSONCards(j datatypes.JSON) []string {
	var ids []string
	if len(j) > 0 {
		_ = json.Unmarshal(j, &ids)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids
}

func HandsMapJSON(m map[string][]string) datatypes.JSON {
	if m == nil {
		m = map[string][]string{}
	}
	b, _ := json.Marshal(m)
	return datatypes.JSON(b)
}

func JSONHandsMap(j datatypes.JSON) map[string][]string {
	m := map[string][]string{}
	if len(j) > 0 {
		_ = json.Unmarshal(j, &m)
	}
	return m
}
