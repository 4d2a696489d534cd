package graph

import "github.com/starford/speclink/internal/models"

// Node is a document in the exported graph.
type Node struct {
	ID       string       `json:"id"`
	Artifact string       `json:"artifact"`
	Phase    models.Phase `json:"phase"`
	Path     string       `json:"path"`
}

// Link is an edge in the exported graph. Missing reports a target with no document.
type Link struct {
	Source   string          `json:"source"`
	Target   string          `json:"target"`
	Relation models.Relation `json:"relation"`
	Missing  bool            `json:"missing,omitempty"`
}

// Export returns the nodes and bare dependsOn/references edges of the corpus.
func (c *Corpus) Export() ([]Node, []Link) {
	nodes := make([]Node, 0, len(c.order))
	var links []Link
	for _, doc := range c.Documents() {
		ref := doc.GraphRef()
		nodes = append(nodes, Node{
			ID:       ref.String(),
			Artifact: ref.Artifact,
			Phase:    ref.Phase,
			Path:     doc.Path,
		})
		add := func(raw []string, rel models.Relation) {
			for _, r := range raw {
				target, err := models.ParseReference(r)
				if err != nil {
					continue
				}
				links = append(links, Link{
					Source:   ref.String(),
					Target:   target.String(),
					Relation: rel,
					Missing:  !c.Exists(target),
				})
			}
		}
		add(doc.DependsOn(), models.RelationDependsOn)
		add(doc.References(), models.RelationReferences)
	}
	if links == nil {
		links = []Link{}
	}
	return nodes, links
}
