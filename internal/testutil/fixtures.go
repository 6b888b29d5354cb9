package testutil

import (
	"bytes"
	"fmt"
)

// SampleResultsJSON is a complete GET /api/results body. The analysis agent
// failed; every other agent succeeded.
const SampleResultsJSON = `{
  "process_info": {
    "status": "completed",
    "start_time": "2025-03-01T10:00:00",
    "end_time": "2025-03-01T10:04:30",
    "total_duration": 270.0,
    "summary": {
      "total_agents_run": 8,
      "successful_agents": 7,
      "failed_agents": 1,
      "agent_results": {"blueprint": "success", "analysis": "error"}
    }
  },
  "results": {
    "indexing": {"status": "success", "indexed_documents": 2},
    "blueprint": {
      "status": "success",
      "blueprint": {
        "text": "## Overview\nA **kanban** board for hardware teams.",
        "architecture_image": {
          "ascii_diagram": "[web] -> [api] -> [postgres]",
          "detailed_description": "Three tier deployment",
          "components": {"frontend": ["React"], "backend": ["Go", "Postgres"]}
        }
      }
    },
    "crawler": {
      "status": "success",
      "research": {
        "detailed_projects": [
          {"name": "wekan", "full_name": "wekan/wekan", "html_url": "https://github.com/wekan/wekan", "description": "Open source kanban", "language": "JavaScript", "stargazers_count": 19000, "forks_count": 2800, "updated_at": "2025-02-20T12:00:00Z", "license": {"name": "MIT License"}},
          {"name": "focalboard", "html_url": "https://github.com/mattermost/focalboard", "description": "Project boards", "language": "TypeScript", "stars": 21000, "forks": 1900, "updated_at": "2024-01-10T08:00:00Z", "license": "NOASSERTION"},
          {"title": "kanboard", "url": "https://github.com/kanboard/kanboard", "description": "Minimalist kanban", "language": "PHP", "stars": 8000, "last_updated": "2025-01-05"}
        ],
        "research_papers": [
          {"title": "Visual work management at scale", "url": "https://example.org/paper1", "authors": ["A. Author"]}
        ],
        "analysis": "The space is **crowded** with open source boards.",
        "keywords_used": ["kanban", "hardware", "project board"],
        "total_projects_found": 3
      }
    },
    "optimizer": {
      "status": "success",
      "optimization": {
        "components": {
          "technical": {"recommendations": "Use an event log for board history."},
          "business": {"recommendations": "Price per seat. High risk of churn in small teams."}
        }
      }
    },
    "echo_analysis": {
      "status": "success",
      "echo_analysis": {
        "components": {
          "assumption_challenges": {"challenges": "Do hardware teams want yet another board?"}
        }
      }
    },
    "synthesis": {
      "status": "success",
      "synthesis": {
        "executive_summary": "A focused niche with *real* demand.",
        "full_report": "# Report\nDetails follow.",
        "report_sections": ["Market", "Risks", "Plan"]
      }
    },
    "analysis": {"status": "error", "error": "model timeout"},
    "dashboard": {
      "status": "success",
      "dashboard": {"summary": "Overall the project is viable."}
    },
    "action_plan": {
      "status": "success",
      "action_plan": {"timeline_weeks": 12, "plan": "Week 1: interview **five** teams."}
    }
  }
}`

// MinimalPDF builds a well-formed PDF document with the given number of
// blank pages.
func MinimalPDF(pages int) []byte {
	if pages < 1 {
		pages = 1
	}

	var buf bytes.Buffer
	offsets := []int{}
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")

	kids := ""
	for i := 0; i < pages; i++ {
		kids += fmt.Sprintf("%d 0 R ", 3+i)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, pages))
	for i := 0; i < pages; i++ {
		obj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}
